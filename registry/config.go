package registry

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tailored-agentic-units/registry-agent/core/config"
)

const placeholderCredentials = "username:password"

// Config locates the registry database.
type Config struct {
	// Enabled switches the registry tools on. Nil means enabled.
	Enabled *bool `json:"enabled,omitempty"`
	// DSN is a DuckDB path or a postgres:// URL. Empty disables the registry.
	DSN               string          `json:"dsn,omitempty"`
	ConnectionTimeout config.Duration `json:"connection_timeout,omitempty"`
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{ConnectionTimeout: config.Duration(5 * time.Second)}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Enabled != nil {
		enabled := *source.Enabled
		c.Enabled = &enabled
	}
	if source.DSN != "" {
		c.DSN = source.DSN
	}
	if source.ConnectionTimeout > 0 {
		c.ConnectionTimeout = source.ConnectionTimeout
	}
}

// ApplyEnv overrides c from the environment:
// GUITAR_REGISTRY_DB_URL, or a PostgreSQL URL assembled from DB_HOST,
// DB_PORT, DB_NAME, DB_USERNAME and DB_PASSWORD when any of them is set;
// ENABLE_DB_TOOLS; DB_CONNECTION_TIMEOUT (seconds).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	if dsn := get("GUITAR_REGISTRY_DB_URL", ""); dsn != "" {
		c.DSN = dsn
	} else if anySet(lookup, "DB_HOST", "DB_PORT", "DB_NAME", "DB_USERNAME", "DB_PASSWORD") {
		u := url.URL{
			Scheme: "postgresql",
			User:   url.UserPassword(get("DB_USERNAME", "username"), get("DB_PASSWORD", "password")),
			Host:   net.JoinHostPort(get("DB_HOST", "localhost"), get("DB_PORT", "5432")),
			Path:   "/" + get("DB_NAME", "guitar_registry"),
		}
		c.DSN = u.String()
	}

	if v, ok := lookup("ENABLE_DB_TOOLS"); ok {
		enabled := strings.EqualFold(strings.TrimSpace(v), "true")
		c.Enabled = &enabled
	}

	if v, ok := lookup("DB_CONNECTION_TIMEOUT"); ok {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
			c.ConnectionTimeout = config.Duration(time.Duration(secs) * time.Second)
		}
	}
}

func anySet(lookup func(string) (string, bool), keys ...string) bool {
	for _, k := range keys {
		if v, ok := lookup(k); ok && v != "" {
			return true
		}
	}
	return false
}

// Active reports whether the registry should be used: enabled, with a DSN
// that does not still carry placeholder credentials.
func (c *Config) Active() bool {
	if c.Enabled != nil && !*c.Enabled {
		return false
	}
	if c.DSN == "" {
		return false
	}
	return !strings.Contains(c.DSN, placeholderCredentials)
}

// NewContextFromConfig creates a registry Context from configuration. An inactive
// configuration yields a Context with no store.
func NewContextFromConfig(cfg *Config, opts ...ContextOption) *Context {
	var o contextOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Active() {
		return NewContext(nil, o.observer)
	}

	dsn := cfg.DSN
	timeout := cfg.ConnectionTimeout.Std()
	return NewContext(func(ctx context.Context) (Store, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		store, err := OpenSQL(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("registry %s: %w", redact(dsn), err)
		}
		return store, nil
	}, o.observer)
}

// redact hides the password of a URL DSN for logs and errors.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
