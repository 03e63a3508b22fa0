package service

import (
	"context"

	chordlet "github.com/Paranoid-AF/chordlet"
)

// Stack bundles the configured collaborators for one session: the HTTP
// client plus an optional suggestion cache. It implements Translator,
// Suggester and Learner.
type Stack struct {
	client *Client
	cache  *SuggestCache
}

// NewStack builds the collaborators described by cfg for userID.
func NewStack(cfg *chordlet.Config, userID string) *Stack {
	s := &Stack{client: NewClient(chordlet.ResolveServiceURL(cfg), userID)}
	if ttl := cfg.SuggestionCacheTTL(); ttl > 0 {
		s.cache = NewSuggestCache(s.client, ttl)
	}
	return s
}

// UserID returns the user id the stack sends.
func (s *Stack) UserID() string { return s.client.UserID() }

// Translate resolves a chord.
func (s *Stack) Translate(ctx context.Context, sequence string) (*chordlet.TranslateResponse, error) {
	return s.client.Translate(ctx, sequence)
}

// Suggest fetches candidates, through the cache when enabled.
func (s *Stack) Suggest(ctx context.Context, word string) ([]string, error) {
	if s.cache != nil {
		return s.cache.Suggest(ctx, word)
	}
	return s.client.Suggest(ctx, word)
}

// Learn reports a correction. Cached lists for both words are dropped since
// the service's ranking for them may change.
func (s *Stack) Learn(ctx context.Context, original, corrected string) error {
	if s.cache != nil {
		s.cache.Forget(original, corrected)
	}
	return s.client.Learn(ctx, original, corrected)
}

// Close releases resources held by the stack.
func (s *Stack) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}
