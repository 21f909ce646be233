// Package admission caps the number of tool calls accepted from a single
// worker response. Selection is a deterministic prefix: first requested,
// first served, with no reordering by type or cost.
package admission

import (
	"context"

	"github.com/tailored-agentic-units/registry-agent/core/config"
	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/observability"
)

// DefaultCap is the number of tool calls admitted per step when none is
// configured.
const DefaultCap = 3

// EventDropped is emitted when a batch exceeds the cap.
const EventDropped observability.EventType = "admission.dropped"

// Batch is the outcome of admitting one worker response's tool calls.
// Admitted is always the prefix of Requested of length min(len, cap);
// Dropped is the remainder and is never executed.
type Batch struct {
	Requested []protocol.ToolCall
	Admitted  []protocol.ToolCall
	Dropped   []protocol.ToolCall
}

// Limiter applies a fixed admission cap.
type Limiter struct {
	cap      int
	observer observability.Observer
}

// New creates a Limiter. A cap below one is a configuration error.
func New(limit int, observer observability.Observer) (*Limiter, error) {
	if limit < 1 {
		return nil, config.NewError("admission", "cap must be at least 1", nil)
	}
	return &Limiter{cap: limit, observer: observability.OrNoOp(observer)}, nil
}

// Cap returns the configured cap.
func (l *Limiter) Cap() int {
	return l.cap
}

// Admit splits requested into the admitted prefix and the dropped tail.
func (l *Limiter) Admit(ctx context.Context, requested []protocol.ToolCall) Batch {
	admitted, dropped := Split(requested, l.cap)
	batch := Batch{Requested: requested, Admitted: admitted, Dropped: dropped}

	if len(dropped) > 0 {
		names := make([]string, len(dropped))
		for i, call := range dropped {
			names[i] = call.Name
		}
		observability.Emit(ctx, l.observer, EventDropped, observability.LevelWarning, "admission.Admit", map[string]any{
			"requested": len(requested),
			"admitted":  len(admitted),
			"dropped":   names,
		})
	}

	return batch
}

// Split returns requested[:limit] and the remainder as independent slices.
func Split(requested []protocol.ToolCall, limit int) (admitted, dropped []protocol.ToolCall) {
	n := min(len(requested), max(limit, 0))
	admitted = append([]protocol.ToolCall(nil), requested[:n]...)
	if n < len(requested) {
		dropped = append([]protocol.ToolCall(nil), requested[n:]...)
	}
	return admitted, dropped
}
