// Package chord groups simultaneous key presses into chords.
//
// A chord starts when the first alphabet key goes down and completes the
// moment the last held key is released. The completed chord is the sorted
// union of every key that was down at any point during that interval.
package chord

import (
	"sort"
	"strings"
)

// Chord is a canonical key set: sorted and de-duplicated.
type Chord []string

// String returns the chord as sent to the decoding service ("dw").
func (c Chord) String() string {
	return strings.Join(c, "")
}

// Tracker tracks held keys and reports chord start/complete transitions.
// It is not safe for concurrent use; a session drives it from one goroutine.
type Tracker struct {
	alphabet map[string]bool
	held     map[string]bool
	union    map[string]bool
}

// NewTracker creates a tracker that only accepts keys in alphabet.
func NewTracker(alphabet []string) *Tracker {
	a := make(map[string]bool, len(alphabet))
	for _, k := range alphabet {
		if k != "" {
			a[k] = true
		}
	}
	return &Tracker{
		alphabet: a,
		held:     make(map[string]bool),
		union:    make(map[string]bool),
	}
}

// Accepts reports whether key belongs to the alphabet.
func (t *Tracker) Accepts(key string) bool {
	return t.alphabet[key]
}

// Press marks key as held. It returns true when this press starts a new
// chord. Keys outside the alphabet and repeats of a held key are ignored.
func (t *Tracker) Press(key string) (started bool) {
	if !t.alphabet[key] || t.held[key] {
		return false
	}
	started = len(t.held) == 0
	t.held[key] = true
	t.union[key] = true
	return started
}

// Release marks key as released. When that empties the held set, the chord
// is returned with ok set and the tracker is reset. Releasing a key that is
// not held is a no-op.
func (t *Tracker) Release(key string) (c Chord, ok bool) {
	if !t.held[key] {
		return nil, false
	}
	delete(t.held, key)
	if len(t.held) > 0 {
		return nil, false
	}
	c = sortedKeys(t.union)
	t.union = make(map[string]bool)
	return c, true
}

// Held returns the keys currently down, sorted.
func (t *Tracker) Held() Chord {
	return sortedKeys(t.held)
}

// Active reports whether a chord is in progress.
func (t *Tracker) Active() bool {
	return len(t.held) > 0
}

// Reset drops any chord in progress without emitting it.
func (t *Tracker) Reset() {
	t.held = make(map[string]bool)
	t.union = make(map[string]bool)
}

func sortedKeys(m map[string]bool) Chord {
	if len(m) == 0 {
		return nil
	}
	c := make(Chord, 0, len(m))
	for k := range m {
		c = append(c, k)
	}
	sort.Strings(c)
	return c
}
