// Package assistant talks to the conversational-AI collaborator and hands back
// its reply in one normalized raw representation.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrCollaboratorUnavailable covers transport failures, vendor errors and timeouts.
	ErrCollaboratorUnavailable = errors.New("assistant: collaborator unavailable")
	// ErrCollaboratorMalformed means the collaborator answered without a usable result.
	ErrCollaboratorMalformed = errors.New("assistant: collaborator returned malformed response")
)

// Fetcher sends a correspondent utterance to the collaborator under a session key.
type Fetcher interface {
	FetchReply(ctx context.Context, sessionKey, utterance, languageCode string) (RawReply, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, sessionKey, utterance, languageCode string) (RawReply, error)

// FetchReply calls f.
func (f FetcherFunc) FetchReply(ctx context.Context, sessionKey, utterance, languageCode string) (RawReply, error) {
	return f(ctx, sessionKey, utterance, languageCode)
}

// RawReply is the collaborator output as decoded JSON. Field names follow the
// Dialogflow query result so vendor JSON decodes into it directly.
type RawReply struct {
	Text     string       `json:"fulfillmentText"`
	Messages []RawMessage `json:"fulfillmentMessages,omitempty"`
}

// RawMessage is one structured fulfillment message. Payload is kept as a
// generic JSON value (map[string]any, []any, string, float64, bool or nil)
// because its shape differs between agent configurations.
type RawMessage struct {
	Payload any `json:"payload,omitempty"`
}

// DecodeRawReply decodes a query-result JSON document.
func DecodeRawReply(data []byte) (RawReply, error) {
	var raw RawReply
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawReply{}, fmt.Errorf("%w: %w", ErrCollaboratorMalformed, err)
	}
	return raw, nil
}

// TextReply builds a RawReply that only carries text.
func TextReply(text string) RawReply {
	return RawReply{Text: text}
}
