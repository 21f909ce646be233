package compress_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/tailored-agentic-units/registry-agent/compress"
	"github.com/tailored-agentic-units/registry-agent/observability"
)

func listingPage(size int) string {
	var b strings.Builder
	b.WriteString("<html><head><style>body { color: red; }</style><script>var tracking = 1999;</script></head><body>")
	b.WriteString("<h1>1965 Fender Mustang</h1>")
	b.WriteString("<p>Offered at $2,499 with a solid mahogany body and a 24 inch scale.</p>")
	for b.Len() < size {
		b.WriteString("<p>The seller notes honest player wear and original hardware throughout.</p>\n")
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestPattern_PassThroughBelowThreshold(t *testing.T) {
	p := compress.NewPattern(compress.Config{})
	raw := "<b>short</b>   payload"

	got := p.Compress(context.Background(), raw, "")

	if got.Summary != raw {
		t.Errorf("got %q, want input unchanged", got.Summary)
	}
	if len(got.Facts) != 0 {
		t.Errorf("got facts %v, want none", got.Facts)
	}
}

func TestPattern_ExtractsFactsWithinCap(t *testing.T) {
	p := compress.NewPattern(compress.Config{})
	raw := listingPage(10000)

	got := p.Compress(context.Background(), raw, "guitar specifications")

	for _, want := range []string{"$2,499", "mahogany", "1965"} {
		if !slices.Contains(got.Facts, want) {
			t.Errorf("facts %v missing %q", got.Facts, want)
		}
	}

	factLine, _, found := strings.Cut(got.Summary, "\n\n")
	if !found || !strings.HasPrefix(factLine, "Key info: ") {
		t.Fatalf("summary missing fact header: %q", got.Summary[:min(len(got.Summary), 120)])
	}
	for _, want := range []string{"$2,499", "mahogany", "1965"} {
		if !strings.Contains(factLine, want) {
			t.Errorf("fact header missing %q: %q", want, factLine)
		}
	}

	if n := utf8.RuneCountInString(got.Summary); n > p.Config().MaxLength {
		t.Errorf("summary length %d exceeds cap %d", n, p.Config().MaxLength)
	}
	if strings.Contains(got.Summary, "<p>") || strings.Contains(got.Summary, "tracking") {
		t.Error("markup and script bodies should be stripped")
	}
}

func TestPattern_Idempotent(t *testing.T) {
	p := compress.NewPattern(compress.Config{})
	inputs := []string{
		"",
		"tiny",
		listingPage(5000),
		listingPage(20000),
		strings.Repeat("x", 4000),
		strings.Repeat("Content preview: ", 300),
	}

	for _, raw := range inputs {
		once := p.Compress(context.Background(), raw, "")
		twice := p.Compress(context.Background(), once.Summary, "")
		if twice.Summary != once.Summary {
			t.Errorf("compress not idempotent for input of length %d", len(raw))
		}
	}
}

func TestPattern_PerClassLimitAndDedup(t *testing.T) {
	p := compress.NewPattern(compress.Config{Threshold: 10})
	raw := "Years 1961 1962 1961 1963 1964. Maple MAPLE maple alder ash ebony."

	got := p.Compress(context.Background(), raw, "")

	years := 0
	woods := 0
	for _, f := range got.Facts {
		switch strings.ToLower(f) {
		case "1961", "1962", "1963", "1964":
			years++
		case "maple", "alder", "ash", "ebony":
			woods++
		}
	}
	if years != 3 {
		t.Errorf("got %d years, want 3 (facts %v)", years, got.Facts)
	}
	if woods != 3 {
		t.Errorf("got %d woods, want 3 (facts %v)", woods, got.Facts)
	}
	if !slices.Contains(got.Facts, "Maple") || slices.Contains(got.Facts, "MAPLE") {
		t.Errorf("duplicates should collapse to the first spelling: %v", got.Facts)
	}
}

func TestPattern_PickupCodesCaseSensitive(t *testing.T) {
	p := compress.NewPattern(compress.Config{Threshold: 10})

	got := p.Compress(context.Background(), "An HSS layout, h is not a code, ss neither.", "")

	if !slices.Contains(got.Facts, "HSS") {
		t.Errorf("facts %v missing HSS", got.Facts)
	}
	for _, f := range got.Facts {
		if f == "h" || f == "ss" {
			t.Errorf("lower-case %q should not be a pickup code", f)
		}
	}
}

func TestPattern_NoFactsUsesPreviewOnly(t *testing.T) {
	p := compress.NewPattern(compress.Config{})
	raw := strings.Repeat("lorem ipsum dolor sit amet ", 200)

	got := p.Compress(context.Background(), raw, "")

	if !strings.HasPrefix(got.Summary, "Content preview: ") {
		t.Errorf("got %q", got.Summary[:40])
	}
	if !strings.HasSuffix(got.Summary, "...") {
		t.Error("summary should end with an ellipsis")
	}
}

func TestTruncated(t *testing.T) {
	cfg := compress.DefaultConfig()
	got := compress.Truncated(strings.Repeat("a  b\n", 2000), cfg)

	if len(got.Facts) != 0 {
		t.Errorf("fallback should carry no facts, got %v", got.Facts)
	}
	if utf8.RuneCountInString(got.Summary) > cfg.MaxLength {
		t.Errorf("fallback length %d exceeds cap", utf8.RuneCountInString(got.Summary))
	}
	if !compress.IsSummary(got.Summary) {
		t.Error("fallback should have the summary shape")
	}
}

func TestSemantic_UsesExtractor(t *testing.T) {
	extractor := compress.ExtractorFunc(func(ctx context.Context, text, hint string) (string, error) {
		return "Body: alder. Finish: sunburst. Price $1,299.", nil
	})
	s := compress.NewSemantic(extractor, nil, time.Second, nil)

	got := s.Compress(context.Background(), listingPage(6000), "specs")

	if !strings.Contains(got.Summary, "sunburst") {
		t.Errorf("summary should use extracted passages: %q", got.Summary)
	}
	if !slices.Contains(got.Facts, "$1,299") || !slices.Contains(got.Facts, "alder") {
		t.Errorf("facts %v should come from extracted text", got.Facts)
	}
}

func TestSemantic_FallsBackOnError(t *testing.T) {
	rec := observability.NewRecorder()
	extractor := compress.ExtractorFunc(func(ctx context.Context, text, hint string) (string, error) {
		return "", errors.New("service unavailable")
	})
	s := compress.NewSemantic(extractor, nil, time.Second, rec)
	raw := listingPage(6000)

	got := s.Compress(context.Background(), raw, "")
	want := compress.NewPattern(compress.Config{}).Compress(context.Background(), raw, "")

	if got.Summary != want.Summary {
		t.Error("fallback should equal the pattern compressor output")
	}
	if len(rec.OfType(compress.EventFallback)) != 1 {
		t.Errorf("got %d fallback events, want 1", len(rec.OfType(compress.EventFallback)))
	}
}

func TestSemantic_FallsBackOnTimeout(t *testing.T) {
	extractor := compress.ExtractorFunc(func(ctx context.Context, text, hint string) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return "too late", nil
	})
	s := compress.NewSemantic(extractor, nil, 20*time.Millisecond, nil)

	start := time.Now()
	got := s.Compress(context.Background(), listingPage(6000), "")

	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("compression blocked for %v", elapsed)
	}
	if strings.Contains(got.Summary, "too late") {
		t.Error("late extractor output should be ignored")
	}
	if !slices.Contains(got.Facts, "mahogany") {
		t.Errorf("fallback facts %v missing mahogany", got.Facts)
	}
}

type countingCompressor struct {
	calls atomic.Int32
}

func (c *countingCompressor) Compress(ctx context.Context, raw, hint string) compress.Result {
	c.calls.Add(1)
	return compress.Result{Summary: "summary of " + hint}
}

func TestCached(t *testing.T) {
	inner := &countingCompressor{}
	cached := compress.NewCached(inner, 2)
	ctx := context.Background()

	cached.Compress(ctx, "a", "h1")
	cached.Compress(ctx, "a", "h1")
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("got %d inner calls, want 1", got)
	}

	if got := cached.Compress(ctx, "a", "h2"); got.Summary != "summary of h2" {
		t.Errorf("hint should be part of the key, got %q", got.Summary)
	}

	cached.Compress(ctx, "b", "h1")
	if cached.Len() != 2 {
		t.Errorf("got %d entries, want capacity 2", cached.Len())
	}

	cached.Compress(ctx, "a", "h1")
	if got := inner.calls.Load(); got != 4 {
		t.Errorf("evicted entry should be recomputed: got %d inner calls, want 4", got)
	}
}

func TestCached_HitRefreshesEntry(t *testing.T) {
	inner := &countingCompressor{}
	cached := compress.NewCached(inner, 2)
	ctx := context.Background()

	cached.Compress(ctx, "fender page", "h")
	cached.Compress(ctx, "gibson page", "h")
	cached.Compress(ctx, "fender page", "h")
	cached.Compress(ctx, "gretsch page", "h")

	if got := inner.calls.Load(); got != 3 {
		t.Fatalf("got %d inner calls, want 3", got)
	}

	cached.Compress(ctx, "fender page", "h")
	if got := inner.calls.Load(); got != 3 {
		t.Errorf("recently used entry was evicted: got %d inner calls, want 3", got)
	}

	cached.Compress(ctx, "gibson page", "h")
	if got := inner.calls.Load(); got != 4 {
		t.Errorf("least recently used entry kept: got %d inner calls, want 4", got)
	}
}
