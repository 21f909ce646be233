package session

import "fmt"

// Backend names accepted in Config.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config selects and configures the session store backend.
type Config struct {
	Backend     string      `json:"backend,omitempty"`
	Path        string      `json:"path,omitempty"`
	PoolSize    int         `json:"pool_size,omitempty"`
	Compression Compression `json:"compression,omitempty"`
}

// DefaultConfig returns the default session configuration (in-memory).
func DefaultConfig() Config {
	return Config{
		Backend:     BackendMemory,
		PoolSize:    4,
		Compression: CompressionZstd,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.PoolSize > 0 {
		c.PoolSize = source.PoolSize
	}
	if source.Compression != "" {
		c.Compression = source.Compression
	}
}

// New creates a Store from configuration.
func New(cfg *Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path, cfg.PoolSize, cfg.Compression)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
