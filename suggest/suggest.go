// Package suggest drives word-level suggestions: the Accumulator decides when
// to fetch candidates for the word being typed, and the Presenter holds the
// candidates on display until one is accepted.
package suggest

import "github.com/Paranoid-AF/chordlet/output"

// Request is one suggestion fetch.
type Request struct {
	// Segment is the word the candidates would replace.
	Segment output.Segment
	// Final marks a fetch issued at a word boundary. Only candidates from a
	// final fetch report an accepted correction to the learning service.
	Final bool
}

// Fetcher issues a suggestion request. It must not block; results come back
// through Presenter.SetCandidates.
type Fetcher func(Request)

// Accumulator turns word growth and word boundaries into suggestion fetches.
type Accumulator struct {
	fetch Fetcher
}

// NewAccumulator creates an accumulator that issues requests through fetch.
func NewAccumulator(fetch Fetcher) *Accumulator {
	return &Accumulator{fetch: fetch}
}

// CharacterResolved is called after a decoded character grew the current
// word. It keeps the candidate list warm with a non-final fetch.
func (a *Accumulator) CharacterResolved(word output.Segment) {
	if word.Word == "" {
		return
	}
	a.fetch(Request{Segment: word})
}

// WordBoundary is called when space, Enter or an explicit finish ended word.
// It issues a final fetch and reports whether one was sent.
func (a *Accumulator) WordBoundary(word output.Segment) bool {
	if word.Word == "" {
		return false
	}
	a.fetch(Request{Segment: word, Final: true})
	return true
}

// Set is a list of candidates bound to the fetch that produced it.
type Set struct {
	Request
	Candidates []string
}

// Acceptance is the outcome of accepting a displayed candidate.
type Acceptance struct {
	Candidate string
	// Final is copied from the displayed set.
	Final bool
	// Segment is the word the displayed set was fetched for.
	Segment output.Segment
}

// Presenter holds the displayed candidates.
type Presenter struct {
	max   int
	set   Set
	shown bool
}

// NewPresenter creates a presenter that displays at most max candidates.
// A non-positive max means no limit.
func NewPresenter(max int) *Presenter {
	return &Presenter{max: max}
}

// SetCandidates replaces the displayed set. Duplicates are dropped keeping
// the first occurrence; an empty list clears the display.
func (p *Presenter) SetCandidates(s Set) {
	seen := make(map[string]bool, len(s.Candidates))
	list := make([]string, 0, len(s.Candidates))
	for _, c := range s.Candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		list = append(list, c)
		if p.max > 0 && len(list) == p.max {
			break
		}
	}
	if len(list) == 0 {
		p.Clear()
		return
	}
	s.Candidates = list
	p.set = s
	p.shown = true
}

// Candidates returns the displayed candidates, never nil.
func (p *Presenter) Candidates() []string {
	if !p.shown {
		return []string{}
	}
	return append([]string(nil), p.set.Candidates...)
}

// Final reports whether the displayed set came from a final fetch.
func (p *Presenter) Final() bool {
	return p.shown && p.set.Final
}

// Clear empties the display.
func (p *Presenter) Clear() {
	p.set = Set{}
	p.shown = false
}

// Stale reports whether the displayed set belongs to a different word than
// word, i.e. a new word has started since it was fetched.
func (p *Presenter) Stale(word output.Segment) bool {
	if !p.shown {
		return false
	}
	return p.set.Final || p.set.Segment.Start != word.Start
}

// Accept picks a displayed candidate and clears the display. It returns false
// when candidate is not on display.
func (p *Presenter) Accept(candidate string) (Acceptance, bool) {
	if !p.shown {
		return Acceptance{}, false
	}
	for _, c := range p.set.Candidates {
		if c == candidate {
			acc := Acceptance{Candidate: c, Final: p.set.Final, Segment: p.set.Segment}
			p.Clear()
			return acc, true
		}
	}
	return Acceptance{}, false
}

// AcceptIndex accepts the i-th displayed candidate (zero-based).
func (p *Presenter) AcceptIndex(i int) (Acceptance, bool) {
	if !p.shown || i < 0 || i >= len(p.set.Candidates) {
		return Acceptance{}, false
	}
	return p.Accept(p.set.Candidates[i])
}
