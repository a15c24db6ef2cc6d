package chat

import (
	"context"

	"ai-chat/chaterrors"
	"ai-chat/llm"
)

type State int

const (
	// Delivered: the stream ran to completion.
	Delivered State = iota + 1
	// Aborted: cancelled by the user or superseded; partial content is kept.
	Aborted
	// Failed: the assistant content was replaced by an error description.
	Failed
)

func (s State) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Aborted:
		return "aborted"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the single terminal result of a turn.
type Outcome struct {
	State State
	// Assistant is the final assistant message as the turn left it.
	Assistant Message
	Usage     *llm.Usage
	// Err is set only for Failed.
	Err *chaterrors.ChatError
}

// Turn tracks one submission until it reaches its terminal state.
type Turn struct {
	done    chan struct{}
	outcome Outcome
}

func newTurn() *Turn {
	return &Turn{done: make(chan struct{})}
}

func (t *Turn) finish(o Outcome) {
	t.outcome = o
	close(t.done)
}

// Done is closed once the turn reached its terminal state.
func (t *Turn) Done() <-chan struct{} { return t.done }

// Wait blocks until the turn ends or ctx is done.
func (t *Turn) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
