// Package service talks to the decoding, suggestion and learning endpoints.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	chordlet "github.com/Paranoid-AF/chordlet"
)

// ErrNoDecoding is returned by Translate when the service has no confident
// decoding for a chord.
var ErrNoDecoding = errors.New("no confident decoding")

// Translator resolves a chord sequence into a character.
type Translator interface {
	Translate(ctx context.Context, sequence string) (*chordlet.TranslateResponse, error)
}

// Suggester returns replacement candidates for a word, best first.
type Suggester interface {
	Suggest(ctx context.Context, word string) ([]string, error)
}

// Learner records a correction the user accepted.
type Learner interface {
	Learn(ctx context.Context, original, corrected string) error
}

// Client calls the three endpoints of a chordlet service over HTTP.
type Client struct {
	baseURL string
	userID  string
	client  *http.Client
}

// NewClient creates a client for the service at baseURL, sending userID with
// every request.
func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL: baseURL,
		userID:  userID,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// UserID returns the user id sent with every request.
func (c *Client) UserID() string { return c.userID }

// Translate posts a chord to /translate. A response without a usable
// character is returned together with ErrNoDecoding.
func (c *Client) Translate(ctx context.Context, sequence string) (*chordlet.TranslateResponse, error) {
	var resp chordlet.TranslateResponse
	err := c.post(ctx, "/translate", chordlet.TranslateRequest{
		Sequence: sequence,
		UserID:   c.userID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Decoded() {
		return &resp, ErrNoDecoding
	}
	return &resp, nil
}

// Suggest posts a word to /suggest.
func (c *Client) Suggest(ctx context.Context, word string) ([]string, error) {
	var resp chordlet.SuggestResponse
	err := c.post(ctx, "/suggest", chordlet.SuggestRequest{
		Word:   word,
		UserID: c.userID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Suggestions, nil
}

// Learn posts an accepted correction to /learn.
func (c *Client) Learn(ctx context.Context, original, corrected string) error {
	var resp chordlet.LearnResponse
	return c.post(ctx, "/learn", chordlet.LearnRequest{
		Original:  original,
		Corrected: corrected,
		UserID:    c.userID,
	}, &resp)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != 200 {
		return fmt.Errorf("%s error (status %d): %s", path, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w (body: %s)", path, err, string(body))
	}
	return nil
}
