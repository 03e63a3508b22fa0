package session

// Trace kinds.
const (
	TraceChord     = "chord"     // chord completed and sent for decoding
	TraceAbandoned = "abandoned" // pending chord replaced by a newer one
	TraceResolved  = "resolved"  // decoded character written
	TraceStale     = "stale"     // response for a slot or word that is gone
	TraceUndecoded = "undecoded" // no confident decoding, slot removed
	TraceFailed    = "failed"    // service call failed
	TraceDropped   = "dropped"   // placeholder removed by backspace
	TraceSuggested = "suggested" // candidates displayed
	TraceAccepted  = "accepted"  // candidate replaced a word
)

// Trace describes one reconciliation step of a session.
type Trace struct {
	Kind       string   `toml:"kind" json:"kind"`
	Token      uint64   `toml:"token,omitempty" json:"token,omitempty"`
	Chord      string   `toml:"chord,omitempty" json:"chord,omitempty"`
	Char       string   `toml:"char,omitempty" json:"char,omitempty"`
	Word       string   `toml:"word,omitempty" json:"word,omitempty"`
	Candidate  string   `toml:"candidate,omitempty" json:"candidate,omitempty"`
	Candidates []string `toml:"candidates,omitempty" json:"candidates,omitempty"`
	Final      bool     `toml:"final,omitempty" json:"final,omitempty"`
	Corrected  bool     `toml:"corrected,omitempty" json:"corrected,omitempty"`
	Error      string   `toml:"error,omitempty" json:"error,omitempty"`
}
