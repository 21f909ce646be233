// Package compress reduces oversized tool and document payloads to bounded,
// fact-dense summaries. Small payloads pass through unchanged, compression
// never fails, and compressing a summary again returns it as is.
package compress

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	factsPrefix   = "Key info: "
	previewPrefix = "Content preview: "
	ellipsis      = "..."
)

// Result is a compressed payload. Facts is empty when the input passed
// through unchanged or when extraction found nothing.
type Result struct {
	Summary string
	Facts   []string
}

// Compressor reduces raw text, optionally guided by an intent hint such as
// "guitar specifications".
type Compressor interface {
	Compress(ctx context.Context, raw, hint string) Result
}

// Config bounds the pattern compressor. Lengths are in characters.
type Config struct {
	Threshold     int `json:"threshold,omitempty"`
	PreviewLength int `json:"preview_length,omitempty"`
	MaxLength     int `json:"max_length,omitempty"`
	PerClass      int `json:"per_class,omitempty"`
}

// DefaultConfig returns the default compression bounds.
func DefaultConfig() Config {
	return Config{
		Threshold:     1000,
		PreviewLength: 2000,
		MaxLength:     3000,
		PerClass:      3,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Threshold > 0 {
		c.Threshold = source.Threshold
	}
	if source.PreviewLength > 0 {
		c.PreviewLength = source.PreviewLength
	}
	if source.MaxLength > 0 {
		c.MaxLength = source.MaxLength
	}
	if source.PerClass > 0 {
		c.PerClass = source.PerClass
	}
}

var summaryShape = regexp.MustCompile(`(?s)\A(?:Key info: [^\n]*\n\n)?Content preview: .*\.\.\.\z`)

// IsSummary reports whether text already has the shape of a compressor
// summary.
func IsSummary(text string) bool {
	return summaryShape.MatchString(text)
}

// Frame assembles a summary from facts and body text, keeping the result
// within maxLength characters. The preview is the head of body capped at
// previewLength.
func Frame(facts []string, body string, previewLength, maxLength int) string {
	var header string
	if len(facts) > 0 {
		header = factsPrefix + strings.Join(facts, ", ") + "\n\n"
	}

	budget := maxLength - utf8.RuneCountInString(header) - utf8.RuneCountInString(previewPrefix) - len(ellipsis)
	if budget < 0 {
		// Facts alone overflow the cap; drop them rather than the preview frame.
		header = ""
		budget = maxLength - utf8.RuneCountInString(previewPrefix) - len(ellipsis)
	}

	return header + previewPrefix + head(body, min(previewLength, max(budget, 0))) + ellipsis
}

// Truncated is the non-semantic fallback: a head-truncated copy of the
// whitespace-normalized text with no facts.
func Truncated(raw string, cfg Config) Result {
	return Result{Summary: Frame(nil, collapse(raw), cfg.PreviewLength, cfg.MaxLength)}
}

func head(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
