package window

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/observability"
)

// EventFilterFallback is emitted when the relevance filter fails and the
// log is fitted unfiltered.
const EventFilterFallback observability.EventType = "window.filter.fallback"

const defaultFilterTimeout = 20 * time.Second

// Filter picks the messages of a log that are relevant to hint, usually by
// asking a language model. It returns the indices of the messages to keep.
type Filter interface {
	Relevant(ctx context.Context, messages []protocol.Message, hint string) ([]int, error)
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(ctx context.Context, messages []protocol.Message, hint string) ([]int, error)

func (f FilterFunc) Relevant(ctx context.Context, messages []protocol.Message, hint string) ([]int, error) {
	return f(ctx, messages, hint)
}

// WithFilter runs f over the log before the recency walk. A non-positive
// timeout defaults to 20 seconds.
func WithFilter(f Filter, timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout <= 0 {
			timeout = defaultFilterTimeout
		}
		m.filter = f
		m.filterTimeout = timeout
	}
}

// relevant returns the messages the filter keeps, in log order. The newest
// message is always kept. Any filter error or timeout returns messages
// unchanged.
func (m *Manager) relevant(ctx context.Context, messages []protocol.Message) []protocol.Message {
	if m.filter == nil || len(messages) < 2 {
		return messages
	}

	keep, err := m.askFilter(ctx, messages)
	if err != nil {
		observability.Emit(ctx, m.observer, EventFilterFallback, observability.LevelWarning, "window.relevant", map[string]any{
			"error":    err.Error(),
			"messages": len(messages),
		})
		return messages
	}

	newest := len(messages) - 1
	keep = append(keep, newest)
	slices.Sort(keep)
	keep = slices.Compact(keep)

	out := make([]protocol.Message, 0, len(keep))
	for _, i := range keep {
		if i >= 0 && i <= newest {
			out = append(out, messages[i])
		}
	}
	return out
}

func (m *Manager) askFilter(ctx context.Context, messages []protocol.Message) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, m.filterTimeout)
	defer cancel()

	type answer struct {
		keep []int
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		keep, err := m.filter.Relevant(ctx, messages, m.hint)
		done <- answer{keep, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("relevance filter: %w", ctx.Err())
	case a := <-done:
		if a.err != nil {
			return nil, fmt.Errorf("relevance filter: %w", a.err)
		}
		return a.keep, nil
	}
}
