// Package worker connects the scheduler to a chat completion model.
package worker

import (
	"context"
	"errors"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
)

// ErrEmptyResponse is returned when the model produces no choices.
var ErrEmptyResponse = errors.New("worker returned no response")

// Worker produces the next assistant message for a conversation. tools
// is the catalog the model may call; it is empty for synthesis calls.
type Worker interface {
	Invoke(ctx context.Context, messages []protocol.Message, tools []protocol.Tool) (protocol.Message, error)
}

// Func adapts a function to the Worker interface.
type Func func(ctx context.Context, messages []protocol.Message, tools []protocol.Tool) (protocol.Message, error)

func (f Func) Invoke(ctx context.Context, messages []protocol.Message, tools []protocol.Tool) (protocol.Message, error) {
	return f(ctx, messages, tools)
}
