package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	chordlet "github.com/Paranoid-AF/chordlet"
	"github.com/Paranoid-AF/chordlet/observe"
	"github.com/Paranoid-AF/chordlet/service"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const wait = 2 * time.Second

// translateCall is one blocked Translate call; the test answers it.
type translateCall struct {
	seq   string
	reply chan translateReply
}

type translateReply struct {
	resp *chordlet.TranslateResponse
	err  error
}

func (c translateCall) answer(ch string) {
	c.reply <- translateReply{resp: &chordlet.TranslateResponse{Char: ch}}
}

type fakeServices struct {
	calls       chan translateCall
	suggestions map[string][]string
	suggestErr  error
	words       chan string
	learned     chan [2]string

	mu    sync.Mutex
	holds map[string]chan struct{}
}

// hold makes the next Suggest call for word block until the returned
// function is called.
func (f *fakeServices) hold(word string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.holds[word] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func newFakeServices() *fakeServices {
	return &fakeServices{
		calls:       make(chan translateCall, 16),
		suggestions: map[string][]string{},
		words:       make(chan string, 64),
		learned:     make(chan [2]string, 16),
		holds:       map[string]chan struct{}{},
	}
}

func (f *fakeServices) Translate(ctx context.Context, seq string) (*chordlet.TranslateResponse, error) {
	call := translateCall{seq: seq, reply: make(chan translateReply, 1)}
	f.calls <- call
	select {
	case r := <-call.reply:
		if r.err == nil && !r.resp.Decoded() {
			return r.resp, service.ErrNoDecoding
		}
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeServices) Suggest(ctx context.Context, word string) ([]string, error) {
	f.words <- word
	f.mu.Lock()
	gate, held := f.holds[word]
	delete(f.holds, word)
	f.mu.Unlock()
	if held {
		<-gate
	}
	if f.suggestErr != nil {
		return nil, f.suggestErr
	}
	return f.suggestions[word], nil
}

func (f *fakeServices) Learn(ctx context.Context, original, corrected string) error {
	f.learned <- [2]string{original, corrected}
	return nil
}

type harness struct {
	t      *testing.T
	s      *Session
	fake   *fakeServices
	traces chan Trace
}

func start(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{t: t, fake: newFakeServices(), traces: make(chan Trace, 256)}
	opts := Options{
		Alphabet:         []string{"d", "w", "q", "k", "o", "p"},
		Placeholder:      "?",
		MaxCandidates:    5,
		TranslateTimeout: 5 * time.Second,
		SuggestTimeout:   5 * time.Second,
		LearnTimeout:     5 * time.Second,
		OnTrace:          func(tr Trace) { h.traces <- tr },
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.s = New(opts, NewServices(h.fake))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// chord presses and releases keys and returns the resulting Translate call.
func (h *harness) chord(keys ...string) translateCall {
	h.t.Helper()
	for _, k := range keys {
		h.s.KeyDown(k)
	}
	for _, k := range keys {
		h.s.KeyUp(k)
	}
	select {
	case c := <-h.fake.calls:
		return c
	case <-time.After(wait):
		h.t.Fatalf("no translate call for %v", keys)
		return translateCall{}
	}
}

// expect waits for a trace of the given kind, skipping others.
func (h *harness) expect(kind string) Trace {
	h.t.Helper()
	timeout := time.After(wait)
	for {
		select {
		case tr := <-h.traces:
			if tr.Kind == kind {
				return tr
			}
		case <-timeout:
			h.t.Fatalf("no %q trace", kind)
			return Trace{}
		}
	}
}

func (h *harness) view() chordlet.View {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	v, err := h.s.View(ctx)
	if err != nil {
		h.t.Fatalf("View: %v", err)
	}
	return v
}

// typeChar types one chord that decodes to ch and waits for the non-final
// suggestions it triggers.
func (h *harness) typeChar(key, ch string) {
	h.t.Helper()
	h.chord(key).answer(ch)
	h.expect(TraceResolved)
	h.expect(TraceSuggested)
}

func (h *harness) nextWord() string {
	h.t.Helper()
	select {
	case w := <-h.fake.words:
		return w
	case <-time.After(wait):
		h.t.Fatal("no suggestion request")
		return ""
	}
}

func TestResolveIssuesSuggestion(t *testing.T) {
	h := start(t, nil)

	call := h.chord("d", "w")
	if call.seq != "dw" {
		t.Errorf("sequence = %q, want %q", call.seq, "dw")
	}
	if v := h.view(); v.Text != "?" || !v.Pending {
		t.Errorf("view before response = %+v, want placeholder", v)
	}

	call.answer("a")
	h.expect(TraceResolved)

	v := h.view()
	if v.Text != "a" || v.Word != "a" || v.Pending {
		t.Errorf("view = %+v, want text and word a", v)
	}
	if w := h.nextWord(); w != "a" {
		t.Errorf("suggestion requested for %q, want %q", w, "a")
	}
}

func TestOutOfOrderResponseDropped(t *testing.T) {
	h := start(t, nil)

	first := h.chord("d", "w")
	second := h.chord("q")
	h.expect(TraceAbandoned)

	second.answer("b")
	h.expect(TraceResolved)
	first.answer("a")
	stale := h.expect(TraceStale)
	if stale.Chord != "dw" {
		t.Errorf("stale chord = %q, want dw", stale.Chord)
	}

	if v := h.view(); v.Text != "b" || v.Word != "b" {
		t.Errorf("view = %+v, want only b", v)
	}
}

func TestStaleResponseIsNoop(t *testing.T) {
	h := start(t, nil)
	h.fake.suggestions["b"] = []string{"be", "by"}
	h.fake.suggestions["bc"] = []string{"bcc"}

	first := h.chord("d")
	second := h.chord("w")
	second.answer("b")
	h.expect(TraceSuggested)
	third := h.chord("q")
	third.answer("c")
	h.expect(TraceResolved)
	h.expect(TraceSuggested)
	before := h.view()

	first.answer("x")
	h.expect(TraceStale)
	if after := h.view(); !reflect.DeepEqual(before, after) {
		t.Errorf("stale response changed the view: %+v -> %+v", before, after)
	}
}

func TestBackspaceDropsPlaceholder(t *testing.T) {
	h := start(t, nil)
	h.typeChar("d", "a")

	call := h.chord("w")
	h.s.KeyDown(chordlet.KeyBackspace)
	h.expect(TraceDropped)
	if v := h.view(); v.Text != "a" || v.Pending {
		t.Errorf("view = %+v, want the committed a only", v)
	}

	call.answer("b")
	h.expect(TraceStale)
	if v := h.view(); v.Text != "a" {
		t.Errorf("text = %q after late response, want a", v.Text)
	}

	h.s.KeyDown(chordlet.KeyBackspace)
	if v := h.view(); v.Text != "" || v.Word != "" {
		t.Errorf("view = %+v, want empty", v)
	}
}

func TestUndecodedChordRemovesPlaceholder(t *testing.T) {
	h := start(t, nil)
	h.chord("k", "o", "p").answer("?")
	h.expect(TraceUndecoded)

	if v := h.view(); v.Text != "" || v.Pending {
		t.Errorf("view = %+v, want empty", v)
	}
}

func TestTransportFailure(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	h := start(t, func(o *Options) { o.Metrics = met })
	h.chord("d").reply <- translateReply{err: errors.New("connection refused")}
	failed := h.expect(TraceFailed)
	if failed.Error == "" {
		t.Error("failed trace should carry the error")
	}
	if v := h.view(); v.Text != "" || v.Pending {
		t.Errorf("view = %+v, want empty", v)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "chordlet.service.errors" {
				found = m.Data.(metricdata.Sum[int64]).DataPoints[0].Value == 1
			}
		}
	}
	if !found {
		t.Error("service error not counted")
	}
}

func TestSeparatorWhilePending(t *testing.T) {
	h := start(t, nil)
	call := h.chord("d")
	h.s.KeyDown(chordlet.KeySpace)
	if v := h.view(); v.Text != "? " {
		t.Errorf("text = %q, want %q", v.Text, "? ")
	}

	call.answer("a")
	h.expect(TraceResolved)
	v := h.view()
	if v.Text != "a " || v.Word != "" {
		t.Errorf("view = %+v, want text %q and no current word", v, "a ")
	}
	select {
	case w := <-h.fake.words:
		t.Errorf("unexpected suggestion request for %q", w)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEnterSeparates(t *testing.T) {
	h := start(t, nil)
	h.typeChar("d", "a")
	h.nextWord()
	h.s.KeyDown(chordlet.KeyEnter)
	if w := h.nextWord(); w != "a" {
		t.Errorf("final fetch for %q, want a", w)
	}
	if v := h.view(); v.Text != "a\n" || v.Word != "" {
		t.Errorf("view = %+v", v)
	}
}

func typeWrd(h *harness) {
	h.fake.suggestions["wrd"] = []string{"word", "ward"}
	h.typeChar("w", "w")
	h.typeChar("d", "r")
	h.typeChar("q", "d")
}

func TestFinalAcceptanceLearns(t *testing.T) {
	h := start(t, nil)
	typeWrd(h)

	h.s.KeyDown(chordlet.KeySpace)
	if tr := h.expect(TraceSuggested); !tr.Final || tr.Word != "wrd" {
		t.Fatalf("suggested = %+v, want final for wrd", tr)
	}
	v := h.view()
	if !v.Final || !reflect.DeepEqual(v.Candidates, []string{"word", "ward"}) {
		t.Fatalf("view = %+v, want final candidates", v)
	}

	h.s.Accept("word")
	h.expect(TraceAccepted)
	if v := h.view(); v.Text != "word " || len(v.Candidates) != 0 {
		t.Errorf("view = %+v, want %q and no candidates", v, "word ")
	}

	select {
	case got := <-h.fake.learned:
		if got != [2]string{"wrd", "word"} {
			t.Errorf("learned %v, want [wrd word]", got)
		}
	case <-time.After(wait):
		t.Fatal("no learning report")
	}
}

func TestNonFinalAcceptanceDoesNotLearn(t *testing.T) {
	h := start(t, nil)
	typeWrd(h)

	if v := h.view(); v.Final || len(v.Candidates) != 2 {
		t.Fatalf("view = %+v, want non-final candidates", v)
	}
	h.s.AcceptIndex(0)
	h.expect(TraceAccepted)
	if v := h.view(); v.Text != "word" || v.Word != "word" {
		t.Errorf("view = %+v, want word", v)
	}

	select {
	case got := <-h.fake.learned:
		t.Errorf("unexpected learning report %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAcceptanceDoesNotFetch(t *testing.T) {
	h := start(t, nil)
	typeWrd(h)
	for len(h.fake.words) > 0 {
		<-h.fake.words
	}

	h.s.Accept("ward")
	h.expect(TraceAccepted)
	select {
	case w := <-h.fake.words:
		t.Errorf("acceptance triggered a fetch for %q", w)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLateSuggestionsForEndedWordDropped(t *testing.T) {
	h := start(t, nil)
	h.fake.suggestions["wrd"] = []string{"word"}
	h.typeChar("w", "w")
	h.typeChar("d", "r")

	release := h.fake.hold("wrd")
	defer release()
	h.chord("q").answer("d")
	h.expect(TraceResolved)
	for w := h.nextWord(); w != "wrd"; w = h.nextWord() {
	}

	h.s.KeyDown(chordlet.KeySpace)
	if tr := h.expect(TraceSuggested); !tr.Final {
		t.Fatalf("suggested = %+v, want the final list", tr)
	}

	release()
	if tr := h.expect(TraceStale); tr.Word != "wrd" {
		t.Errorf("stale trace = %+v", tr)
	}
	v := h.view()
	if !v.Final || !reflect.DeepEqual(v.Candidates, []string{"word"}) {
		t.Fatalf("view = %+v, want the final list kept", v)
	}

	h.s.Accept("word")
	h.expect(TraceAccepted)
	if v := h.view(); v.Text != "word " {
		t.Errorf("text = %q, want %q", v.Text, "word ")
	}
	select {
	case got := <-h.fake.learned:
		if got != [2]string{"wrd", "word"} {
			t.Errorf("learned %v, want [wrd word]", got)
		}
	case <-time.After(wait):
		t.Fatal("no learning report")
	}
}

func TestNewWordClearsFinalCandidates(t *testing.T) {
	h := start(t, nil)
	typeWrd(h)
	h.s.KeyDown(chordlet.KeySpace)
	h.expect(TraceSuggested)

	h.chord("d").answer("x")
	h.expect(TraceResolved)
	if v := h.view(); v.Final {
		t.Errorf("final candidates still shown after a new word started: %+v", v)
	}
}

func TestSuggestionErrorKeepsDisplay(t *testing.T) {
	h := start(t, nil)
	typeWrd(h)
	before := h.view().Candidates

	h.fake.suggestErr = errors.New("unavailable")
	h.chord("k").answer("s")
	h.expect(TraceFailed)
	v := h.view()
	if v.Word != "wrds" {
		t.Errorf("word = %q, want wrds", v.Word)
	}
	if !reflect.DeepEqual(v.Candidates, before) {
		t.Errorf("candidates = %v, want %v kept", v.Candidates, before)
	}
}

func TestCorrectedHighlightExpires(t *testing.T) {
	h := start(t, func(o *Options) { o.Highlight = 20 * time.Millisecond })
	h.chord("d").reply <- translateReply{resp: &chordlet.TranslateResponse{Char: "a", WasCorrected: true}}
	if tr := h.expect(TraceResolved); !tr.Corrected {
		t.Error("resolved trace should report the correction")
	}
	if !h.view().Corrected {
		t.Fatal("corrected character not highlighted")
	}

	deadline := time.Now().Add(wait)
	for h.view().Corrected {
		if time.Now().After(deadline) {
			t.Fatal("highlight never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHeldKeysInView(t *testing.T) {
	changes := make(chan chordlet.View, 64)
	h := start(t, func(o *Options) {
		o.OnChange = func(v chordlet.View) { changes <- v }
	})
	h.s.KeyDown("w")
	h.s.KeyDown("d")
	h.s.KeyDown("x")
	if v := h.view(); v.Held != "dw" {
		t.Errorf("held = %q, want dw", v.Held)
	}
	if len(changes) != 2 {
		t.Errorf("got %d change notifications, want 2", len(changes))
	}
}

func TestClosedSession(t *testing.T) {
	s := New(Options{Alphabet: []string{"d"}}, NewServices(newFakeServices()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)

	if err := s.KeyDown("d"); !errors.Is(err, ErrClosed) {
		t.Errorf("KeyDown after Run = %v, want ErrClosed", err)
	}
	if _, err := s.View(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("View after Run = %v, want ErrClosed", err)
	}
}
