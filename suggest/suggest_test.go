package suggest

import (
	"reflect"
	"testing"

	"github.com/Paranoid-AF/chordlet/output"
)

func seg(start int, word string) output.Segment {
	return output.Segment{Start: start, End: start + len(word), Word: word}
}

func TestAccumulatorFetches(t *testing.T) {
	var got []Request
	a := NewAccumulator(func(r Request) { got = append(got, r) })

	a.CharacterResolved(seg(0, "w"))
	a.CharacterResolved(seg(0, "wr"))
	if sent := a.WordBoundary(seg(0, "wrd")); !sent {
		t.Error("boundary after a word should send a final fetch")
	}

	want := []Request{
		{Segment: seg(0, "w")},
		{Segment: seg(0, "wr")},
		{Segment: seg(0, "wrd"), Final: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("requests = %+v, want %+v", got, want)
	}
}

func TestAccumulatorSkipsEmptyWord(t *testing.T) {
	calls := 0
	a := NewAccumulator(func(Request) { calls++ })
	a.CharacterResolved(seg(3, ""))
	if a.WordBoundary(seg(3, "")) {
		t.Error("empty word should not send a final fetch")
	}
	if calls != 0 {
		t.Errorf("expected no fetches, got %d", calls)
	}
}

func TestPresenterDedupAndCap(t *testing.T) {
	p := NewPresenter(3)
	p.SetCandidates(Set{Candidates: []string{"word", "ward", "word", "", "wore", "wild"}})

	want := []string{"word", "ward", "wore"}
	if got := p.Candidates(); !reflect.DeepEqual(got, want) {
		t.Errorf("candidates = %v, want %v", got, want)
	}
}

func TestPresenterEmptyListClears(t *testing.T) {
	p := NewPresenter(5)
	p.SetCandidates(Set{Request: Request{Final: true}, Candidates: []string{"a"}})
	p.SetCandidates(Set{Candidates: nil})

	if got := p.Candidates(); got == nil || len(got) != 0 {
		t.Errorf("candidates = %#v, want empty non-nil", got)
	}
	if p.Final() {
		t.Error("cleared presenter should not report final")
	}
}

func TestAcceptCarriesFinalFlag(t *testing.T) {
	tests := []struct {
		name  string
		final bool
	}{
		{"final fetch", true},
		{"non-final fetch", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPresenter(5)
			p.SetCandidates(Set{
				Request:    Request{Segment: seg(0, "wrd"), Final: tt.final},
				Candidates: []string{"word", "ward"},
			})

			acc, ok := p.Accept("word")
			if !ok {
				t.Fatal("accept failed")
			}
			if acc.Final != tt.final {
				t.Errorf("final = %v, want %v", acc.Final, tt.final)
			}
			if acc.Segment.Word != "wrd" {
				t.Errorf("segment word = %q, want %q", acc.Segment.Word, "wrd")
			}
			if len(p.Candidates()) != 0 {
				t.Error("accept should clear the display")
			}
		})
	}
}

func TestAcceptUnknownCandidate(t *testing.T) {
	p := NewPresenter(5)
	if _, ok := p.Accept("word"); ok {
		t.Error("accept with nothing displayed succeeded")
	}
	p.SetCandidates(Set{Candidates: []string{"word"}})
	if _, ok := p.Accept("ward"); ok {
		t.Error("accept of a candidate not on display succeeded")
	}
	if len(p.Candidates()) != 1 {
		t.Error("failed accept should keep the display")
	}
}

func TestAcceptIndex(t *testing.T) {
	p := NewPresenter(5)
	p.SetCandidates(Set{Candidates: []string{"word", "ward"}})
	if _, ok := p.AcceptIndex(2); ok {
		t.Error("out of range index accepted")
	}
	acc, ok := p.AcceptIndex(1)
	if !ok || acc.Candidate != "ward" {
		t.Errorf("AcceptIndex(1) = %+v, %v; want ward", acc, ok)
	}
}

func TestStale(t *testing.T) {
	p := NewPresenter(5)
	if p.Stale(seg(0, "w")) {
		t.Error("empty display is never stale")
	}

	p.SetCandidates(Set{Request: Request{Segment: seg(0, "wr")}, Candidates: []string{"wry"}})
	if p.Stale(seg(0, "wrd")) {
		t.Error("growth of the same word should keep candidates")
	}
	if !p.Stale(seg(4, "x")) {
		t.Error("a new word should invalidate candidates")
	}

	p.SetCandidates(Set{Request: Request{Segment: seg(0, "wrd"), Final: true}, Candidates: []string{"word"}})
	if !p.Stale(seg(4, "x")) {
		t.Error("final candidates are stale once typing resumes")
	}
}
