// Package output owns the typed text buffer and the placeholder reserved for
// an unresolved chord.
//
// Only the Model mutates committed characters. A chord completion reserves a
// Slot owned by a freshly minted Token; a decoding response may fill or drop
// that slot only while it still carries the owning token. Any other response
// is a no-op, which is how late answers for superseded chords are discarded.
package output

import "strings"

// Token identifies one resolution request. Tokens are strictly increasing
// within a Model; the zero Token is never minted.
type Token uint64

// Sequencer mints tokens.
type Sequencer struct {
	last Token
}

// Next returns a token greater than every token returned before.
func (s *Sequencer) Next() Token {
	s.last++
	return s.last
}

// Last returns the most recently minted token, or zero.
func (s *Sequencer) Last() Token {
	return s.last
}

// Slot is the placeholder for a chord waiting on the decoding service.
type Slot struct {
	Token Token
	// Index is the cell position the decoded character will take.
	Index int
}

// Segment is a run of cells holding a word, [Start, End).
type Segment struct {
	Start int
	End   int
	Word  string
}

// Resolution describes a slot filled by Resolve.
type Resolution struct {
	// Index is where the character landed.
	Index int
	// ExtendsWord is true when the character grew the current word. It is
	// false when a separator was typed while the chord was unresolved.
	ExtendsWord bool
	// Word is the current word after the resolution.
	Word Segment
}

type cell struct {
	text      string
	separator bool
	corrected bool
}

// Model is the output buffer: committed cells, at most one pending slot, and
// the start of the word currently being typed.
// It is not safe for concurrent use.
type Model struct {
	cells     []cell
	slot      *Slot
	wordStart int
	seq       Sequencer
}

// NewModel returns an empty buffer.
func NewModel() *Model {
	return &Model{}
}

// Reserve places a new slot at the tail for a completed chord and returns its
// token. A slot still waiting from an earlier chord is abandoned first; its
// token is returned as abandoned so late responses for it are recognizably
// stale.
func (m *Model) Reserve() (tok Token, abandoned Token) {
	if m.slot != nil {
		abandoned = m.slot.Token
	}
	tok = m.seq.Next()
	m.slot = &Slot{Token: tok, Index: len(m.cells)}
	return tok, abandoned
}

// Pending returns the current slot, if any.
func (m *Model) Pending() (Slot, bool) {
	if m.slot == nil {
		return Slot{}, false
	}
	return *m.slot, true
}

// Owns reports whether tok owns the current slot.
func (m *Model) Owns(tok Token) bool {
	return m.slot != nil && tok != 0 && m.slot.Token == tok
}

// Resolve fills the slot owned by tok with ch. It returns false, changing
// nothing, when tok does not own the current slot.
func (m *Model) Resolve(tok Token, ch string) (Resolution, bool) {
	if !m.Owns(tok) || ch == "" {
		return Resolution{}, false
	}
	i := m.slot.Index
	m.slot = nil

	m.cells = append(m.cells, cell{})
	copy(m.cells[i+1:], m.cells[i:])
	m.cells[i] = cell{text: ch}

	// Separators typed while the chord was pending sit after i; the word
	// they started moves right by one.
	if i < m.wordStart {
		m.wordStart++
	}
	return Resolution{
		Index:       i,
		ExtendsWord: i >= m.wordStart,
		Word:        m.WordSegment(),
	}, true
}

// Discard removes the slot owned by tok without producing a character.
// It returns false when tok does not own the current slot.
func (m *Model) Discard(tok Token) bool {
	if !m.Owns(tok) {
		return false
	}
	m.slot = nil
	return true
}

// Backspace drops the pending slot when there is one and returns its token;
// its response will be ignored. Otherwise the last committed character goes,
// shrinking the current word; the word never extends back past the separator
// that started it.
func (m *Model) Backspace() (dropped Token, changed bool) {
	if m.slot != nil {
		dropped = m.slot.Token
		m.slot = nil
		return dropped, true
	}
	if len(m.cells) == 0 {
		return 0, false
	}
	m.cells = m.cells[:len(m.cells)-1]
	if m.wordStart > len(m.cells) {
		m.wordStart = len(m.cells)
	}
	return 0, true
}

// Separate appends a literal separator and ends the current word, returning
// it. A pending slot is left where it is.
func (m *Model) Separate(sep string) Segment {
	ended := m.WordSegment()
	m.cells = append(m.cells, cell{text: sep, separator: true})
	m.wordStart = len(m.cells)
	return ended
}

// EndWord ends the current word without writing a separator.
func (m *Model) EndWord() Segment {
	ended := m.WordSegment()
	m.wordStart = len(m.cells)
	return ended
}

// Replace swaps the cells of seg for word, one cell per rune, and returns
// the text it replaced. It fails when seg no longer reads seg.Word, is not
// followed by a separator or the end of the buffer, or straddles the slot.
func (m *Model) Replace(seg Segment, word string) (old string, ok bool) {
	if seg.Start < 0 || seg.Start > seg.End || seg.End > len(m.cells) {
		return "", false
	}
	if old = m.join(seg.Start, seg.End); old != seg.Word {
		return "", false
	}
	if seg.End < len(m.cells) && !m.cells[seg.End].separator {
		return "", false
	}
	if m.slot != nil && m.slot.Index > seg.Start && m.slot.Index < seg.End {
		return "", false
	}

	repl := make([]cell, 0, len(word))
	for _, r := range word {
		repl = append(repl, cell{text: string(r)})
	}
	delta := len(repl) - (seg.End - seg.Start)

	tail := append([]cell(nil), m.cells[seg.End:]...)
	m.cells = append(append(m.cells[:seg.Start], repl...), tail...)

	if m.slot != nil && m.slot.Index >= seg.End {
		m.slot.Index += delta
	}
	if m.wordStart > seg.Start {
		m.wordStart += delta
	}
	return old, true
}

// MarkCorrected flags the cell at i as substituted by the decoding service.
func (m *Model) MarkCorrected(i int) {
	if i >= 0 && i < len(m.cells) {
		m.cells[i].corrected = true
	}
}

// ClearCorrected removes every correction flag.
func (m *Model) ClearCorrected() {
	for i := range m.cells {
		m.cells[i].corrected = false
	}
}

// HasCorrected reports whether any cell is flagged as corrected.
func (m *Model) HasCorrected() bool {
	for _, c := range m.cells {
		if c.corrected {
			return true
		}
	}
	return false
}

// Word returns the word currently being typed.
func (m *Model) Word() string {
	return m.join(m.wordStart, len(m.cells))
}

// WordSegment returns the current word with its position.
func (m *Model) WordSegment() Segment {
	return Segment{Start: m.wordStart, End: len(m.cells), Word: m.Word()}
}

// Len returns the number of committed cells.
func (m *Model) Len() int {
	return len(m.cells)
}

// Text renders the buffer with placeholder standing in for the slot.
func (m *Model) Text(placeholder string) string {
	var sb strings.Builder
	for i, c := range m.cells {
		if m.slot != nil && m.slot.Index == i {
			sb.WriteString(placeholder)
		}
		sb.WriteString(c.text)
	}
	if m.slot != nil && m.slot.Index == len(m.cells) {
		sb.WriteString(placeholder)
	}
	return sb.String()
}

func (m *Model) join(start, end int) string {
	var sb strings.Builder
	for _, c := range m.cells[start:end] {
		sb.WriteString(c.text)
	}
	return sb.String()
}
