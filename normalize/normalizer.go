// Package normalize maps free-text manufacturer names onto the canonical
// names held by the registry.
package normalize

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/tailored-agentic-units/registry-agent/core/config"
	"github.com/tailored-agentic-units/registry-agent/observability"
	"github.com/tailored-agentic-units/registry-agent/registry"
)

// Normalizer events.
const (
	EventNormalized observability.EventType = "normalize.match"
	EventFallback   observability.EventType = "normalize.fallback"
)

// Source supplies candidate manufacturers. Records is the cached snapshot;
// Live queries the backing store. *registry.Context implements it.
type Source interface {
	Records() []registry.Manufacturer
	Live(ctx context.Context) ([]registry.Manufacturer, error)
}

// Match is the outcome of a lookup. When Matched is false Name is the
// original input and Score is the best score seen below the threshold.
type Match struct {
	Name    string                 `json:"name"`
	Score   int                    `json:"score"`
	Matched bool                   `json:"matched"`
	Record  *registry.Manufacturer `json:"record,omitempty"`
}

// Config holds the scoring thresholds and live-query timeout.
type Config struct {
	NormalizeThreshold int             `json:"normalize_threshold,omitempty"`
	SearchThreshold    int             `json:"search_threshold,omitempty"`
	LiveTimeout        config.Duration `json:"live_timeout,omitempty"`
}

// DefaultConfig returns the default normalizer configuration.
func DefaultConfig() Config {
	return Config{
		NormalizeThreshold: 85,
		SearchThreshold:    70,
		LiveTimeout:        config.Duration(15 * time.Second),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.NormalizeThreshold > 0 {
		c.NormalizeThreshold = source.NormalizeThreshold
	}
	if source.SearchThreshold > 0 {
		c.SearchThreshold = source.SearchThreshold
	}
	if source.LiveTimeout > 0 {
		c.LiveTimeout = source.LiveTimeout
	}
}

// Normalizer scores names against a Source.
type Normalizer struct {
	source   Source
	cfg      Config
	observer observability.Observer
}

// New creates a Normalizer. A nil source makes every lookup fall back to
// the input.
func New(source Source, cfg *Config, observer observability.Observer) *Normalizer {
	c := DefaultConfig()
	if cfg != nil {
		c.Merge(cfg)
	}
	return &Normalizer{source: source, cfg: c, observer: observability.OrNoOp(observer)}
}

// Normalize returns the canonical name best matching name. A miss, an
// empty registry or a failing store all yield the input unchanged with
// Matched false.
func (n *Normalizer) Normalize(ctx context.Context, name string) Match {
	candidates, origin := n.candidates(ctx)
	scored := rank(name, candidates)

	result := Match{Name: name}
	if len(scored) > 0 {
		top := scored[0]
		result.Score = top.Score
		if top.Score >= n.cfg.NormalizeThreshold {
			result = top
			result.Matched = true
		}
	}

	typ, level := EventNormalized, observability.LevelVerbose
	if !result.Matched {
		typ, level = EventFallback, observability.LevelInfo
	}
	observability.Emit(ctx, n.observer, typ, level, "normalize.Normalize", map[string]any{
		"input":  name,
		"name":   result.Name,
		"score":  result.Score,
		"origin": origin,
	})
	return result
}

// Search returns up to limit candidates scoring at least the search
// threshold, best first. A limit below 1 returns every match.
func (n *Normalizer) Search(ctx context.Context, query string, limit int) []Match {
	candidates, _ := n.candidates(ctx)

	var out []Match
	for _, m := range rank(query, candidates) {
		if m.Score < n.cfg.SearchThreshold {
			break
		}
		m.Matched = true
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// candidates returns the cached snapshot, or a live read when the cache is
// empty. origin names where the candidates came from.
func (n *Normalizer) candidates(ctx context.Context) ([]registry.Manufacturer, string) {
	if n.source == nil {
		return nil, "none"
	}
	if records := n.source.Records(); len(records) > 0 {
		return records, "cache"
	}

	if timeout := n.cfg.LiveTimeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	records, err := n.source.Live(ctx)
	if err != nil {
		observability.Emit(ctx, n.observer, EventFallback, observability.LevelWarning, "normalize.candidates", map[string]any{
			"error": err.Error(),
		})
		return nil, "none"
	}
	return records, "live"
}

// rank scores every candidate and sorts descending, keeping registry order
// among equal scores.
func rank(input string, candidates []registry.Manufacturer) []Match {
	out := make([]Match, 0, len(candidates))
	for i := range candidates {
		rec := candidates[i]
		out = append(out, Match{
			Name:   rec.Name,
			Score:  Score(input, rec.Name),
			Record: &rec,
		})
	}
	slices.SortStableFunc(out, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}
