package window

import (
	"context"
	"slices"
	"time"

	"github.com/tailored-agentic-units/registry-agent/compress"
	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/observability"
	"github.com/tailored-agentic-units/registry-agent/tokens"
)

// TruncationMarker is appended to a message cut to fit the budget.
const TruncationMarker = "... [truncated]"

// EventFit is emitted after every Fit with the outcome counts.
const EventFit observability.EventType = "window.fit"

// Option configures a Manager.
type Option func(*Manager)

// WithObserver sets the observer that receives fit events.
func WithObserver(o observability.Observer) Option {
	return func(m *Manager) { m.observer = observability.OrNoOp(o) }
}

// WithHint sets the intent hint passed to the compressor.
func WithHint(hint string) Option {
	return func(m *Manager) { m.hint = hint }
}

// Manager builds bounded message logs.
type Manager struct {
	counter    tokens.Counter
	compressor compress.Compressor
	budget     Budget
	hint       string
	observer   observability.Observer

	filter        Filter
	filterTimeout time.Duration
}

// New creates a Manager. A nil compressor disables compression.
func New(counter tokens.Counter, compressor compress.Compressor, budget Budget, opts ...Option) *Manager {
	m := &Manager{
		counter:    counter,
		compressor: compressor,
		budget:     budget,
		hint:       "guitar specifications",
		observer:   observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Budget returns the configured budget.
func (m *Manager) Budget() Budget {
	return m.budget
}

// Tokens returns the token cost of a message: its content plus the names
// and arguments of any tool calls it carries.
func (m *Manager) Tokens(msg protocol.Message) int {
	n := m.counter.Count(msg.Content())
	for _, call := range msg.ToolCalls() {
		n += m.counter.Count(call.Name) + m.counter.Count(call.Arguments)
	}
	return n
}

// Fit returns the newest suffix of messages that fits the budget left by
// systemPrompt, oldest first. With a Filter configured, messages it judges
// irrelevant are removed before the walk.
//
// Only content changes: compressed or truncated messages keep their role
// and tool call metadata, except that a newest message whose tool calls
// alone overflow has its call arguments cut too. The result is never
// empty: when even the call names of the newest message do not fit, Fit
// fails with *BudgetExhaustedError.
func (m *Manager) Fit(ctx context.Context, systemPrompt string, messages []protocol.Message) ([]protocol.Message, error) {
	systemTokens := m.counter.Count(systemPrompt)
	available := m.budget.Available(systemTokens)
	if available <= 0 {
		return nil, &BudgetExhaustedError{
			MaxTokens:      m.budget.MaxTokens,
			ReservedTokens: m.budget.ReservedTokens,
			SystemTokens:   systemTokens,
		}
	}

	filtered := m.relevant(ctx, messages)

	compressed := 0
	candidates := make([]protocol.Message, len(filtered))
	for i, msg := range filtered {
		candidates[i] = msg
		if m.compressor == nil {
			continue
		}
		result := m.compressor.Compress(ctx, msg.Content(), m.hint)
		if result.Summary != msg.Content() {
			candidates[i] = msg.WithContent(result.Summary)
			compressed++
		}
	}

	kept := make([]protocol.Message, 0, len(candidates))
	total := 0
	truncated := false

	for i := len(candidates) - 1; i >= 0; i-- {
		msg := candidates[i]
		cost := m.Tokens(msg)
		if total+cost <= available {
			kept = append(kept, msg)
			total += cost
			continue
		}

		cut, ok := m.truncate(msg, available-total)
		if !ok && len(kept) == 0 {
			cut, ok = m.truncateCalls(msg, available)
			if !ok {
				return nil, &BudgetExhaustedError{
					MaxTokens:      m.budget.MaxTokens,
					ReservedTokens: m.budget.ReservedTokens,
					SystemTokens:   systemTokens,
					MessageTokens:  cost,
				}
			}
		}
		if ok {
			kept = append(kept, cut)
			total += m.Tokens(cut)
			truncated = true
		}
		break
	}

	slices.Reverse(kept)

	observability.Emit(ctx, m.observer, EventFit, observability.LevelVerbose, "window.Fit", map[string]any{
		"available":  available,
		"used":       total,
		"messages":   len(messages),
		"relevant":   len(filtered),
		"kept":       len(kept),
		"compressed": compressed,
		"truncated":  truncated,
	})

	return kept, nil
}

// truncate cuts msg's content so the whole message costs at most allowance
// tokens. It reports false when not even the tool call metadata fits.
func (m *Manager) truncate(msg protocol.Message, allowance int) (protocol.Message, bool) {
	overhead := m.Tokens(msg.WithContent(""))
	room := allowance - overhead
	if room <= 0 {
		return protocol.Message{}, false
	}

	markerTokens := m.counter.Count(TruncationMarker)
	if room <= markerTokens {
		return msg.WithContent(m.counter.Truncate(msg.Content(), room)), true
	}

	for keep := room - markerTokens; keep >= 0; keep-- {
		content := m.counter.Truncate(msg.Content(), keep) + TruncationMarker
		if m.counter.Count(content) <= room {
			return msg.WithContent(content), true
		}
	}
	return msg.WithContent(m.counter.Truncate(msg.Content(), room)), true
}

// truncateCalls drops msg's content and cuts its tool call arguments so
// the message costs at most allowance tokens. Call ids and names are kept
// whole; it reports false when the names alone do not fit.
func (m *Manager) truncateCalls(msg protocol.Message, allowance int) (protocol.Message, bool) {
	calls := msg.ToolCalls()
	if len(calls) == 0 {
		return protocol.Message{}, false
	}

	names := 0
	for _, call := range calls {
		names += m.counter.Count(call.Name)
	}
	if names > allowance {
		return protocol.Message{}, false
	}

	for share := (allowance - names) / len(calls); share >= 0; share-- {
		cut := make([]protocol.ToolCall, len(calls))
		for i, call := range calls {
			call.Arguments = m.counter.Truncate(call.Arguments, share)
			cut[i] = call
		}
		if trimmed := msg.WithContent("").WithToolCalls(cut); m.Tokens(trimmed) <= allowance {
			return trimmed, true
		}
	}
	return protocol.Message{}, false
}
