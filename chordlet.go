// Package chordlet defines the wire types shared by the chordlet client, its
// decoding/suggestion/learning services, and the chordletd socket protocol.
// Service messages are JSON request/response bodies; socket messages are
// JSON-encoded and sent over a Unix domain socket, one per line.
package chordlet

// NoDecoding is the character the decoding service returns when it has no
// confident decoding for a chord.
const NoDecoding = "?"

// TranslateRequest asks the decoding service to resolve one chord.
type TranslateRequest struct {
	// Sequence is the canonical chord: held keys sorted and de-duplicated.
	Sequence string `json:"sequence"`
	// UserID identifies the typist for per-user decoding.
	UserID string `json:"user_id"`
}

// TranslateResponse is the decoding service's answer for one chord.
type TranslateResponse struct {
	// Char is the decoded character. Empty or NoDecoding means the chord
	// could not be decoded.
	Char string `json:"char"`
	// WasCorrected is set when the service substituted a nearby valid chord.
	WasCorrected bool `json:"was_corrected"`
}

// Decoded reports whether the response carries a usable character.
func (r *TranslateResponse) Decoded() bool {
	return r.Char != "" && r.Char != NoDecoding
}

// SuggestRequest asks for replacement candidates for a word.
type SuggestRequest struct {
	Word   string `json:"word"`
	UserID string `json:"user_id"`
}

// SuggestResponse lists candidates, best first.
type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

// LearnRequest reports a correction the user accepted.
type LearnRequest struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	UserID    string `json:"user_id"`
}

// LearnResponse is the learning service's acknowledgement.
type LearnResponse struct {
	Status string `json:"status,omitempty"`
}

// Socket event types sent from a front end to chordletd.
const (
	EventKeyDown = "down"
	EventKeyUp   = "up"
	EventAccept  = "accept"
	EventFinish  = "finish"
	EventView    = "view"
)

// KeyEvent is one line sent from a front end to the daemon.
type KeyEvent struct {
	// Type is one of EventKeyDown, EventKeyUp, EventAccept, EventFinish,
	// EventView. A view event asks for the current snapshot.
	Type string `json:"type"`
	// Key is the key name for down/up events ("d", " ", "Backspace", "Enter").
	Key string `json:"key,omitempty"`
	// Candidate is the accepted suggestion for accept events.
	Candidate string `json:"candidate,omitempty"`
	// Index selects a displayed candidate by position when Candidate is empty.
	Index *int `json:"index,omitempty"`
}

// View is a snapshot of a session as a front end should render it.
type View struct {
	// Text is the output buffer, with the placeholder glyph standing in for
	// an unresolved chord.
	Text string `json:"text"`
	// Word is the word currently being typed.
	Word string `json:"word"`
	// Pending is true while a chord is waiting for the decoding service.
	Pending bool `json:"pending"`
	// Held lists the keys currently held down, sorted.
	Held string `json:"held,omitempty"`
	// Candidates are the displayed suggestions, best first.
	Candidates []string `json:"candidates"`
	// Final is true when the candidates came from a word-boundary fetch.
	Final bool `json:"final"`
	// Corrected is true while the last decoded character is highlighted as
	// substituted by the decoding service.
	Corrected bool `json:"corrected"`
}

// ErrorResponse is the line sent back for an event the daemon rejects.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// Error describes a daemon-side error returned to a socket client.
type Error struct {
	// Code is a machine-readable error identifier (e.g. "invalid_event", "config_error").
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}

// ConfigRequest is sent from a socket client for configuration operations.
type ConfigRequest struct {
	// Action is the config operation: "get", "reload", "defaults", or "validate".
	Action string `json:"action"`
}

// ConfigResponse is sent from the daemon in response to a ConfigRequest.
type ConfigResponse struct {
	Config   *Config  `json:"config,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    *Error   `json:"error,omitempty"`
}
