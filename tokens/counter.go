// Package tokens counts and truncates text against the encoding of the
// target model family. Budget decisions across the runtime depend on these
// counts matching what the model sees, so an unavailable encoding is a
// configuration error rather than a reason to estimate.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/tailored-agentic-units/registry-agent/core/config"
)

// Counter counts tokens for arbitrary text. Implementations must be
// deterministic and safe for concurrent use.
type Counter interface {
	// Count returns the number of tokens text encodes to.
	Count(text string) int
	// Truncate returns the longest prefix of text that encodes to at most
	// limit tokens.
	Truncate(text string, limit int) string
}

// Tiktoken is a Counter backed by a BPE encoding.
type Tiktoken struct {
	name     string
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

// NewCounter loads the named encoding (for example "o200k_base").
func NewCounter(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		return nil, config.NewError("tokens", "encoding name is empty", nil)
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, config.NewError("tokens", "encoding "+encoding+" unavailable", err)
	}
	return &Tiktoken{name: encoding, encoding: enc}, nil
}

// ForModel loads the encoding used by the named model family.
func ForModel(model string) (*Tiktoken, error) {
	if model == "" {
		return nil, config.NewError("tokens", "model name is empty", nil)
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, config.NewError("tokens", "no encoding for model "+model, err)
	}
	return &Tiktoken{name: model, encoding: enc}, nil
}

// Name returns the encoding or model name the counter was built from.
func (t *Tiktoken) Name() string {
	return t.name
}

func (t *Tiktoken) encode(text string) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.encoding.Encode(text, nil, nil)
}

func (t *Tiktoken) decode(ids []int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.encoding.Decode(ids)
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.encode(text))
}

func (t *Tiktoken) Truncate(text string, limit int) string {
	if limit <= 0 || text == "" {
		return ""
	}

	ids := t.encode(text)
	if len(ids) <= limit {
		return text
	}

	// A token prefix can end inside a multi-byte rune; decoding then
	// re-encoding may grow by a token, so shrink until it fits.
	for n := limit; n > 0; n-- {
		prefix := t.decode(ids[:n])
		if t.Count(prefix) <= limit {
			return prefix
		}
	}
	return ""
}
