// Package llm abstracts the completion providers a chat turn can stream from.
package llm

import (
	"context"
	"errors"

	"ai-chat/models"
)

var (
	ErrNoModel    = errors.New("model is required")
	ErrNoMessages = errors.New("messages are required")
)

type Message struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// Request is one completion call: full history, model id and optional
// system instructions.
type Request struct {
	Model        string    `json:"model,omitempty"`
	Messages     []Message `json:"messages"`
	Instructions string    `json:"instructions,omitempty"`
}

func (r Request) Validate() error {
	if r.Model == "" {
		return ErrNoModel
	}
	if len(r.Messages) == 0 {
		return ErrNoMessages
	}
	return nil
}

type Usage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
}

// Stream is a finite, non-restartable sequence of text deltas.
//
// Next blocks until the next delta is available and returns false once the
// stream is exhausted or failed; Err reports which. Usage is only meaningful
// after Next has returned false and may be nil when the provider sent none.
type Stream interface {
	Next() bool
	Delta() string
	Err() error
	Usage() *Usage
	Close() error
}

// Provider starts completion streams. Cancelling ctx stops delivery.
type Provider interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}
