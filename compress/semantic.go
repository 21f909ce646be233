package compress

import (
	"context"
	"fmt"
	"time"

	"github.com/tailored-agentic-units/registry-agent/observability"
)

// EventFallback is emitted when the semantic extractor fails and the pattern
// compressor is used instead.
const EventFallback observability.EventType = "compress.fallback"

// Extractor pulls the passages of text relevant to hint from an external
// service, typically a language model.
type Extractor interface {
	Extract(ctx context.Context, text, hint string) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, text, hint string) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, text, hint string) (string, error) {
	return f(ctx, text, hint)
}

// Semantic asks an Extractor for the relevant passages and frames them like
// the pattern compressor does. Any extractor error, empty answer or timeout
// falls back to the pattern compressor so the caller is never blocked on the
// external service.
type Semantic struct {
	extractor Extractor
	fallback  *Pattern
	timeout   time.Duration
	observer  observability.Observer
}

// NewSemantic creates a Semantic compressor. A non-positive timeout
// defaults to 20 seconds.
func NewSemantic(extractor Extractor, fallback *Pattern, timeout time.Duration, observer observability.Observer) *Semantic {
	if fallback == nil {
		fallback = NewPattern(Config{})
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Semantic{
		extractor: extractor,
		fallback:  fallback,
		timeout:   timeout,
		observer:  observability.OrNoOp(observer),
	}
}

func (s *Semantic) Compress(ctx context.Context, raw, hint string) Result {
	if !s.fallback.Exceeds(raw) || IsSummary(raw) {
		return Result{Summary: raw}
	}

	text, err := stripMarkup(raw)
	if err != nil {
		text = collapse(raw)
	}

	extracted, err := s.extract(ctx, text, hint)
	if err != nil {
		observability.Emit(ctx, s.observer, EventFallback, observability.LevelWarning, "compress.Semantic",
			map[string]any{"error": err.Error(), "length": len(raw)})
		return s.fallback.summarize(text)
	}

	return s.fallback.summarize(collapse(extracted))
}

func (s *Semantic) extract(ctx context.Context, text, hint string) (string, error) {
	if s.extractor == nil {
		return "", fmt.Errorf("no extractor configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type answer struct {
		text string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		text, err := s.extractor.Extract(ctx, text, hint)
		done <- answer{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("extractor: %w", ctx.Err())
	case a := <-done:
		if a.err != nil {
			return "", fmt.Errorf("extractor: %w", a.err)
		}
		if collapse(a.text) == "" {
			return "", fmt.Errorf("extractor returned no content")
		}
		return a.text, nil
	}
}
