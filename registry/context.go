package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/tailored-agentic-units/registry-agent/observability"
)

// Registry lifecycle events.
const (
	EventInit     observability.EventType = "registry.init"
	EventRefresh  observability.EventType = "registry.refresh"
	EventTeardown observability.EventType = "registry.teardown"
)

// ErrClosed is returned by Refresh after Teardown.
var ErrClosed = errors.New("registry context closed")

// Opener creates the backing store on Init.
type Opener func(ctx context.Context) (Store, error)

// Context owns the registry store and the manufacturer cache. The cache is
// filled by Init, replaced wholesale by Refresh and emptied by Teardown;
// readers always see a complete snapshot.
type Context struct {
	open     Opener
	observer observability.Observer

	mu      sync.RWMutex
	store   Store
	records []Manufacturer
	loaded  bool
	closed  bool
}

// NewContext creates a Context whose store is produced by open. A nil
// opener yields a Context with no store: the cache stays empty and live
// lookups fail.
func NewContext(open Opener, observer observability.Observer) *Context {
	return &Context{open: open, observer: observability.OrNoOp(observer)}
}

// WithStore creates a Context over an already-open store.
func WithStore(store Store, observer observability.Observer) *Context {
	return NewContext(func(context.Context) (Store, error) { return store, nil }, observer)
}

// Init opens the store and preloads the cache. A failed preload leaves the
// store open with an empty cache so later lookups can fall back to live
// queries; the load error is still returned.
func (c *Context) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open == nil {
		c.loaded = false
		return nil
	}

	if c.store == nil {
		store, err := c.open(ctx)
		if err != nil {
			return fmt.Errorf("failed to open registry: %w", err)
		}
		c.store = store
		c.closed = false
	}

	err := c.loadLocked(ctx)
	observability.Emit(ctx, c.observer, EventInit, observability.LevelInfo, "registry.Init", map[string]any{
		"manufacturers": len(c.records),
		"error":         err != nil,
	})
	return err
}

// Refresh reloads the cache from the store. The previous snapshot stays in
// place if the reload fails.
func (c *Context) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.store == nil {
		return fmt.Errorf("registry not initialized")
	}

	err := c.loadLocked(ctx)
	observability.Emit(ctx, c.observer, EventRefresh, observability.LevelInfo, "registry.Refresh", map[string]any{
		"manufacturers": len(c.records),
		"error":         err != nil,
	})
	return err
}

func (c *Context) loadLocked(ctx context.Context) error {
	records, err := c.store.Active(ctx)
	if err != nil {
		return fmt.Errorf("failed to load manufacturers: %w", err)
	}
	c.records = records
	c.loaded = true
	return nil
}

// Teardown clears the cache and closes the store if it is closable.
func (c *Context) Teardown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = nil
	c.loaded = false
	c.closed = true

	var err error
	if closer, ok := c.store.(io.Closer); ok {
		err = closer.Close()
	}
	c.store = nil

	observability.Emit(ctx, c.observer, EventTeardown, observability.LevelInfo, "registry.Teardown", nil)
	return err
}

// Records returns a copy of the cached manufacturers.
func (c *Context) Records() []Manufacturer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.records)
}

// Loaded reports whether the cache holds a snapshot.
func (c *Context) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded && len(c.records) > 0
}

// Live queries the store directly, bypassing the cache.
func (c *Context) Live(ctx context.Context) ([]Manufacturer, error) {
	c.mu.RLock()
	store := c.store
	c.mu.RUnlock()

	if store == nil {
		return nil, fmt.Errorf("registry store unavailable")
	}
	return store.Active(ctx)
}

// Store returns the open backing store, or nil before Init and after
// Teardown.
func (c *Context) Store() Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}
