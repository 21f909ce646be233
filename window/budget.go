// Package window fits a conversation into a fixed token budget. Oversized
// messages are compressed first; the log is then kept newest-first until
// the budget is spent, truncating the message that overflows and dropping
// everything older.
package window

import "fmt"

const (
	defaultMaxTokens      = 100000
	defaultReservedTokens = 1000
)

// Budget is the token capacity for a single worker invocation.
// ReservedTokens is withheld to absorb the model's response overhead.
type Budget struct {
	MaxTokens      int `json:"max_tokens,omitempty"`
	ReservedTokens int `json:"reserved_tokens,omitempty"`
}

// DefaultBudget returns the default token budget.
func DefaultBudget() Budget {
	return Budget{
		MaxTokens:      defaultMaxTokens,
		ReservedTokens: defaultReservedTokens,
	}
}

// Merge applies non-zero values from source into b.
func (b *Budget) Merge(source *Budget) {
	if source.MaxTokens > 0 {
		b.MaxTokens = source.MaxTokens
	}
	if source.ReservedTokens > 0 {
		b.ReservedTokens = source.ReservedTokens
	}
}

// Available returns the tokens left for messages after the system prompt
// and the reserve.
func (b Budget) Available(systemTokens int) int {
	return b.MaxTokens - systemTokens - b.ReservedTokens
}

// BudgetExhaustedError reports that nothing of the conversation fits: the
// system prompt and the reserve consume the whole budget, or the newest
// message cannot be cut down to what is left (MessageTokens is then set).
type BudgetExhaustedError struct {
	MaxTokens      int
	ReservedTokens int
	SystemTokens   int
	MessageTokens  int
}

func (e *BudgetExhaustedError) Error() string {
	if e.MessageTokens > 0 {
		return fmt.Sprintf("token budget exhausted: newest message needs %d tokens, %d left after a %d-token system prompt and %d reserved",
			e.MessageTokens, e.MaxTokens-e.SystemTokens-e.ReservedTokens, e.SystemTokens, e.ReservedTokens)
	}
	return fmt.Sprintf("token budget exhausted: system prompt uses %d of %d tokens with %d reserved",
		e.SystemTokens, e.MaxTokens, e.ReservedTokens)
}
