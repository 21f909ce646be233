package compress

import (
	"context"
	"unicode/utf8"
)

// Pattern compresses by stripping markup and extracting facts with regular
// expressions. It performs no I/O and is safe for concurrent use.
type Pattern struct {
	cfg Config
}

// NewPattern creates a Pattern compressor. Zero fields in cfg take their
// defaults.
func NewPattern(cfg Config) *Pattern {
	merged := DefaultConfig()
	merged.Merge(&cfg)
	return &Pattern{cfg: merged}
}

// Config returns the effective configuration.
func (p *Pattern) Config() Config {
	return p.cfg
}

// Exceeds reports whether text is large enough to be compressed.
func (p *Pattern) Exceeds(text string) bool {
	return utf8.RuneCountInString(text) > p.cfg.Threshold
}

func (p *Pattern) Compress(ctx context.Context, raw, hint string) Result {
	if !p.Exceeds(raw) || IsSummary(raw) {
		return Result{Summary: raw}
	}

	text, err := stripMarkup(raw)
	if err != nil {
		return Truncated(raw, p.cfg)
	}
	return p.summarize(text)
}

// summarize frames already-normalized text.
func (p *Pattern) summarize(text string) Result {
	facts := extract(text, p.cfg.PerClass)
	return Result{
		Summary: Frame(facts, text, p.cfg.PreviewLength, p.cfg.MaxLength),
		Facts:   facts,
	}
}
