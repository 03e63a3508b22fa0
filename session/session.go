// Package session runs one typing session: it routes key events through the
// chord tracker, sends completed chords for decoding, reconciles decoded
// characters into the output buffer, and drives suggestion fetches,
// acceptances and learning reports.
//
// All state is owned by the goroutine running [Session.Run]. Key events,
// network completions and timer expiries are queued on a single channel and
// applied in arrival order. Network calls are never cancelled to keep the
// buffer consistent; a late response whose token no longer owns the pending
// slot is dropped.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	chordlet "github.com/Paranoid-AF/chordlet"
	"github.com/Paranoid-AF/chordlet/chord"
	"github.com/Paranoid-AF/chordlet/observe"
	"github.com/Paranoid-AF/chordlet/output"
	"github.com/Paranoid-AF/chordlet/service"
	"github.com/Paranoid-AF/chordlet/suggest"
	"go.opentelemetry.io/otel/metric/noop"
)

// ErrClosed is returned by the input methods once Run has returned.
var ErrClosed = errors.New("session closed")

// Services are the remote collaborators of a session.
type Services struct {
	Translator service.Translator
	Suggester  service.Suggester
	Learner    service.Learner
}

// Remote is anything that implements all three service roles, such as
// [service.Stack].
type Remote interface {
	service.Translator
	service.Suggester
	service.Learner
}

// NewServices uses r for every role.
func NewServices(r Remote) Services {
	return Services{Translator: r, Suggester: r, Learner: r}
}

// Options configure a session.
type Options struct {
	// Alphabet lists the chord keys.
	Alphabet []string
	// Placeholder stands in for an unresolved chord in View.Text.
	Placeholder string
	// MaxCandidates caps the displayed suggestions.
	MaxCandidates int

	TranslateTimeout time.Duration
	SuggestTimeout   time.Duration
	LearnTimeout     time.Duration

	// Highlight is how long a corrected character stays flagged. Zero
	// disables the highlight.
	Highlight time.Duration

	// Metrics receives session instruments. Nil records nothing.
	Metrics *observe.Metrics

	// OnChange, when set, is called from the session goroutine with a
	// snapshot after every visible change. It must not block for long and
	// must not call back into the session synchronously.
	OnChange func(chordlet.View)
	// OnTrace, when set, is called from the session goroutine for every
	// reconciliation event. The same restrictions as OnChange apply.
	OnTrace func(Trace)
}

// OptionsFromConfig derives session options from cfg.
func OptionsFromConfig(cfg *chordlet.Config) Options {
	return Options{
		Alphabet:         cfg.Input.Alphabet,
		Placeholder:      cfg.Display.Placeholder,
		MaxCandidates:    cfg.Suggestions.Max,
		TranslateTimeout: cfg.TranslateTimeout(),
		SuggestTimeout:   cfg.SuggestTimeout(),
		LearnTimeout:     cfg.LearnTimeout(),
		Highlight:        cfg.HighlightDuration(),
	}
}

// Session is one typing session. Create it with New, start it with Run, and
// feed it key events from any goroutine.
type Session struct {
	opts    Options
	svc     Services
	metrics *observe.Metrics

	events chan event
	done   chan struct{}
	wg     sync.WaitGroup

	// Owned by the Run goroutine.
	ctx          context.Context
	tracker      *chord.Tracker
	model        *output.Model
	acc          *suggest.Accumulator
	presenter    *suggest.Presenter
	highlightGen uint64
	highlight    *time.Timer
}

// New creates a session. It does nothing until Run is called.
func New(opts Options, svc Services) *Session {
	if opts.Placeholder == "" {
		opts.Placeholder = chordlet.NoDecoding
	}
	met := opts.Metrics
	if met == nil {
		met, _ = observe.NewMetrics(noop.NewMeterProvider())
	}
	s := &Session{
		opts:      opts,
		svc:       svc,
		metrics:   met,
		events:    make(chan event, 64),
		done:      make(chan struct{}),
		tracker:   chord.NewTracker(opts.Alphabet),
		model:     output.NewModel(),
		presenter: suggest.NewPresenter(opts.MaxCandidates),
	}
	s.acc = suggest.NewAccumulator(s.fetchSuggestions)
	return s
}

// Run processes events until ctx is done. A session runs at most once.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	defer s.wg.Wait()
	defer close(s.done)
	defer func() {
		if s.highlight != nil {
			s.highlight.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

// KeyDown reports a key press.
func (s *Session) KeyDown(key string) error {
	return s.post(keyDown{key: key})
}

// KeyUp reports a key release.
func (s *Session) KeyUp(key string) error {
	return s.post(keyUp{key: key})
}

// Accept accepts a displayed candidate by value.
func (s *Session) Accept(candidate string) error {
	return s.post(accept{candidate: candidate})
}

// AcceptIndex accepts the displayed candidate at position i.
func (s *Session) AcceptIndex(i int) error {
	return s.post(accept{index: i, byIndex: true})
}

// Finish ends the current word without typing a separator.
func (s *Session) Finish() error {
	return s.post(finish{})
}

// View returns a snapshot of the session, taken after every event queued
// before the call has been applied.
func (s *Session) View(ctx context.Context) (chordlet.View, error) {
	reply := make(chan chordlet.View, 1)
	if err := s.post(snapshot{reply: reply}); err != nil {
		return chordlet.View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return chordlet.View{}, ErrClosed
	case <-ctx.Done():
		return chordlet.View{}, ctx.Err()
	}
}

func (s *Session) post(ev event) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// goPost runs fn off the session goroutine and queues its result.
func (s *Session) goPost(fn func() event) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.post(fn())
	}()
}

func (s *Session) view() chordlet.View {
	_, pending := s.model.Pending()
	return chordlet.View{
		Text:       s.model.Text(s.opts.Placeholder),
		Word:       s.model.Word(),
		Pending:    pending,
		Held:       s.tracker.Held().String(),
		Candidates: s.presenter.Candidates(),
		Final:      s.presenter.Final(),
		Corrected:  s.model.HasCorrected(),
	}
}

func (s *Session) changed() {
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.view())
	}
}

func (s *Session) trace(t Trace) {
	if s.opts.OnTrace != nil {
		s.opts.OnTrace(t)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (s *Session) fetchSuggestions(req suggest.Request) {
	s.metrics.RecordSuggestionFetch(s.ctx, req.Final)
	parent := s.ctx
	s.goPost(func() event {
		ctx, cancel := withTimeout(parent, s.opts.SuggestTimeout)
		defer cancel()
		list, err := s.svc.Suggester.Suggest(ctx, req.Segment.Word)
		return suggested{req: req, list: list, err: err}
	})
}

func (s *Session) learn(original, corrected string) {
	parent := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := withTimeout(parent, s.opts.LearnTimeout)
		defer cancel()
		if err := s.svc.Learner.Learn(ctx, original, corrected); err != nil {
			s.metrics.RecordServiceError(parent, observe.EndpointLearn)
			slog.Warn("learn failed", "original", original, "corrected", corrected, "error", err)
		}
	}()
}
