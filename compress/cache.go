package compress

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"
)

const defaultCacheSize = 256

// Cached memoizes another Compressor. Entries are keyed by a BLAKE3 digest
// of the hint and the raw text; once capacity is reached the least
// recently used entry is evicted.
type Cached struct {
	inner   Compressor
	entries *lru.Cache[[32]byte, Result]
}

// NewCached wraps inner with a memo of at most capacity entries
// (default 256).
func NewCached(inner Compressor, capacity int) *Cached {
	if capacity <= 0 {
		capacity = defaultCacheSize
	}
	// lru.New only fails on a non-positive size.
	entries, _ := lru.New[[32]byte, Result](capacity)
	return &Cached{inner: inner, entries: entries}
}

func key(raw, hint string) [32]byte {
	h := blake3.New()
	h.Write([]byte(hint))
	h.Write([]byte{0})
	h.Write([]byte(raw))

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func (c *Cached) Compress(ctx context.Context, raw, hint string) Result {
	k := key(raw, hint)
	if r, ok := c.entries.Get(k); ok {
		return r
	}

	r := c.inner.Compress(ctx, raw, hint)
	c.entries.ContainsOrAdd(k, r)
	return r
}

// Len returns the number of memoized results.
func (c *Cached) Len() int {
	return c.entries.Len()
}
