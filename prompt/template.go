package prompt

import (
	"context"
	_ "embed"
	"errors"
	"regexp"
	"sync"

	"github.com/tailored-agentic-units/registry-agent/core/config"
	"github.com/tailored-agentic-units/registry-agent/core/protocol"
)

// DefaultKey is the template key used when none is configured.
const DefaultKey = "guitar_registry_prompt.md"

//go:embed defaults/guitar_registry_prompt.md
var defaultTemplate string

// Default returns the built-in research prompt template.
func Default() string {
	return defaultTemplate
}

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// Render replaces {name} placeholders in tmpl with values. Unknown
// placeholders are left in place.
func Render(tmpl string, values map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		if v, ok := values[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// Templates loads templates from a Store on first use and caches them.
// With no store, the built-in default serves DefaultKey.
type Templates struct {
	store Store
	key   string

	mu    sync.RWMutex
	cache map[string]string
}

// NewTemplates creates Templates over store. key selects the template
// rendered by System; empty means DefaultKey.
func NewTemplates(store Store, key string) *Templates {
	if key == "" {
		key = DefaultKey
	}
	return &Templates{store: store, key: key, cache: make(map[string]string)}
}

// Key returns the key of the system template.
func (t *Templates) Key() string {
	return t.key
}

// Get returns the template stored under key. A missing template is a
// configuration error.
func (t *Templates) Get(ctx context.Context, key string) (string, error) {
	t.mu.RLock()
	tmpl, ok := t.cache[key]
	t.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	if t.store == nil {
		if key == DefaultKey {
			return defaultTemplate, nil
		}
		return "", config.NewError("prompt", "template not found: "+key, ErrKeyNotFound)
	}

	entries, err := t.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return "", config.NewError("prompt", "template not found: "+key, err)
		}
		return "", config.NewError("prompt", "template unreadable: "+key, err)
	}

	tmpl = string(entries[0].Value)
	t.mu.Lock()
	t.cache[key] = tmpl
	t.mu.Unlock()
	return tmpl, nil
}

// System renders the configured system template for req.
func (t *Templates) System(ctx context.Context, req protocol.ResearchRequest) (string, error) {
	tmpl, err := t.Get(ctx, t.key)
	if err != nil {
		return "", err
	}
	return Render(tmpl, req.Placeholders()), nil
}

// Install writes the built-in template to the store when the configured
// key is absent. It reports whether a file was written.
func (t *Templates) Install(ctx context.Context) (bool, error) {
	if t.store == nil {
		return false, nil
	}

	keys, err := t.store.List(ctx)
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if k == t.key {
			return false, nil
		}
	}

	if err := t.store.Save(ctx, Entry{Key: t.key, Value: []byte(defaultTemplate)}); err != nil {
		return false, err
	}
	return true, nil
}
