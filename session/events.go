package session

import (
	"errors"
	"log/slog"
	"time"

	chordlet "github.com/Paranoid-AF/chordlet"
	"github.com/Paranoid-AF/chordlet/chord"
	"github.com/Paranoid-AF/chordlet/observe"
	"github.com/Paranoid-AF/chordlet/output"
	"github.com/Paranoid-AF/chordlet/service"
	"github.com/Paranoid-AF/chordlet/suggest"
)

type event any

type keyDown struct{ key string }

type keyUp struct{ key string }

type accept struct {
	candidate string
	index     int
	byIndex   bool
}

type finish struct{}

type translated struct {
	tok     output.Token
	chord   string
	resp    *chordlet.TranslateResponse
	err     error
	elapsed time.Duration
}

type suggested struct {
	req  suggest.Request
	list []string
	err  error
}

type unhighlight struct{ gen uint64 }

type snapshot struct{ reply chan chordlet.View }

func (s *Session) handle(ev event) {
	switch ev := ev.(type) {
	case keyDown:
		s.onKeyDown(ev.key)
	case keyUp:
		s.onKeyUp(ev.key)
	case accept:
		s.onAccept(ev)
	case finish:
		s.endWord(s.model.EndWord())
	case translated:
		s.onTranslated(ev)
	case suggested:
		s.onSuggested(ev)
	case unhighlight:
		if ev.gen == s.highlightGen && s.model.HasCorrected() {
			s.model.ClearCorrected()
			s.changed()
		}
	case snapshot:
		ev.reply <- s.view()
	}
}

func (s *Session) onKeyDown(key string) {
	switch key {
	case chordlet.KeySpace:
		s.endWord(s.model.Separate(" "))
	case chordlet.KeyEnter:
		s.endWord(s.model.Separate("\n"))
	case chordlet.KeyBackspace:
		s.backspace()
	default:
		before := len(s.tracker.Held())
		s.tracker.Press(key)
		if len(s.tracker.Held()) != before {
			s.changed()
		}
	}
}

func (s *Session) onKeyUp(key string) {
	if chordlet.IsControlKey(key) {
		return
	}
	before := len(s.tracker.Held())
	c, ok := s.tracker.Release(key)
	if ok {
		s.chordCompleted(c)
		return
	}
	if len(s.tracker.Held()) != before {
		s.changed()
	}
}

// chordCompleted reserves the placeholder and sends the chord for decoding.
// A placeholder still waiting on an earlier chord is replaced.
func (s *Session) chordCompleted(c chord.Chord) {
	tok, abandoned := s.model.Reserve()
	if abandoned != 0 {
		slog.Debug("pending chord replaced", "token", abandoned)
		s.trace(Trace{Kind: TraceAbandoned, Token: uint64(abandoned)})
	}
	seq := c.String()
	s.metrics.Chords.Add(s.ctx, 1)
	s.trace(Trace{Kind: TraceChord, Token: uint64(tok), Chord: seq})

	parent := s.ctx
	s.goPost(func() event {
		ctx, cancel := withTimeout(parent, s.opts.TranslateTimeout)
		defer cancel()
		start := time.Now()
		resp, err := s.svc.Translator.Translate(ctx, seq)
		return translated{tok: tok, chord: seq, resp: resp, err: err, elapsed: time.Since(start)}
	})
	s.changed()
}

func (s *Session) onTranslated(ev translated) {
	s.metrics.TranslateDuration.Record(s.ctx, ev.elapsed.Seconds())

	if !s.model.Owns(ev.tok) {
		s.metrics.Stale.Add(s.ctx, 1)
		slog.Debug("stale translation dropped", "token", ev.tok, "chord", ev.chord)
		s.trace(Trace{Kind: TraceStale, Token: uint64(ev.tok), Chord: ev.chord})
		return
	}

	err := ev.err
	if err == nil && (ev.resp == nil || !ev.resp.Decoded()) {
		err = service.ErrNoDecoding
	}
	if err != nil {
		s.model.Discard(ev.tok)
		if errors.Is(err, service.ErrNoDecoding) {
			s.metrics.Undecoded.Add(s.ctx, 1)
			s.trace(Trace{Kind: TraceUndecoded, Token: uint64(ev.tok), Chord: ev.chord})
		} else {
			s.metrics.RecordServiceError(s.ctx, observe.EndpointTranslate)
			slog.Warn("translate failed", "chord", ev.chord, "error", err)
			s.trace(Trace{Kind: TraceFailed, Token: uint64(ev.tok), Chord: ev.chord, Error: err.Error()})
		}
		s.changed()
		return
	}

	res, _ := s.model.Resolve(ev.tok, ev.resp.Char)
	s.metrics.Resolved.Add(s.ctx, 1)
	s.trace(Trace{
		Kind:      TraceResolved,
		Token:     uint64(ev.tok),
		Chord:     ev.chord,
		Char:      ev.resp.Char,
		Word:      res.Word.Word,
		Corrected: ev.resp.WasCorrected,
	})

	if ev.resp.WasCorrected {
		s.metrics.Corrections.Add(s.ctx, 1)
		s.markCorrected(res.Index)
	}
	if res.ExtendsWord {
		if s.presenter.Stale(res.Word) {
			s.presenter.Clear()
		}
		s.acc.CharacterResolved(res.Word)
	}
	s.changed()
}

func (s *Session) markCorrected(i int) {
	if s.opts.Highlight <= 0 {
		return
	}
	s.model.ClearCorrected()
	s.model.MarkCorrected(i)

	s.highlightGen++
	gen := s.highlightGen
	if s.highlight != nil {
		s.highlight.Stop()
	}
	s.highlight = time.AfterFunc(s.opts.Highlight, func() {
		s.post(unhighlight{gen: gen})
	})
}

func (s *Session) backspace() {
	dropped, changed := s.model.Backspace()
	if dropped != 0 {
		s.trace(Trace{Kind: TraceDropped, Token: uint64(dropped)})
	}
	if changed {
		s.changed()
	}
}

// endWord clears the displayed candidates and sends a final fetch for the
// word that just ended.
func (s *Session) endWord(ended output.Segment) {
	s.presenter.Clear()
	s.acc.WordBoundary(ended)
	s.changed()
}

func (s *Session) onSuggested(ev suggested) {
	if ev.err != nil {
		s.metrics.RecordServiceError(s.ctx, observe.EndpointSuggest)
		slog.Warn("suggest failed", "word", ev.req.Segment.Word, "error", ev.err)
		s.trace(Trace{Kind: TraceFailed, Word: ev.req.Segment.Word, Final: ev.req.Final, Error: ev.err.Error()})
		return
	}
	// A non-final list is only shown while its word is still being typed.
	if !ev.req.Final && ev.req.Segment.Start != s.model.WordSegment().Start {
		slog.Debug("stale suggestions dropped", "word", ev.req.Segment.Word)
		s.trace(Trace{Kind: TraceStale, Word: ev.req.Segment.Word})
		return
	}
	s.presenter.SetCandidates(suggest.Set{Request: ev.req, Candidates: ev.list})
	s.trace(Trace{
		Kind:       TraceSuggested,
		Word:       ev.req.Segment.Word,
		Final:      ev.req.Final,
		Candidates: s.presenter.Candidates(),
	})
	s.changed()
}

func (s *Session) onAccept(ev accept) {
	var (
		acc suggest.Acceptance
		ok  bool
	)
	if ev.byIndex {
		acc, ok = s.presenter.AcceptIndex(ev.index)
	} else {
		acc, ok = s.presenter.Accept(ev.candidate)
	}
	if !ok {
		slog.Debug("acceptance ignored", "candidate", ev.candidate, "index", ev.index)
		return
	}

	// Candidates from a final fetch belong to the word that was ended; the
	// others replace whatever word is being typed now.
	seg := acc.Segment
	if !acc.Final {
		seg = s.model.WordSegment()
		if seg.Start != acc.Segment.Start {
			slog.Debug("acceptance for an ended word ignored", "word", acc.Segment.Word, "candidate", acc.Candidate)
			s.changed()
			return
		}
	}
	old, ok := s.model.Replace(seg, acc.Candidate)
	if !ok {
		slog.Debug("acceptance target changed", "word", seg.Word, "candidate", acc.Candidate)
		s.changed()
		return
	}

	s.metrics.RecordAcceptance(s.ctx, acc.Final)
	s.trace(Trace{Kind: TraceAccepted, Word: old, Candidate: acc.Candidate, Final: acc.Final})
	if acc.Final {
		s.learn(old, acc.Candidate)
	}
	s.changed()
}
