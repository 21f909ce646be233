package kernel

import (
	"fmt"
	"time"

	"github.com/tailored-agentic-units/registry-agent/admission"
	"github.com/tailored-agentic-units/registry-agent/compress"
	"github.com/tailored-agentic-units/registry-agent/core/config"
	"github.com/tailored-agentic-units/registry-agent/normalize"
	"github.com/tailored-agentic-units/registry-agent/prompt"
	"github.com/tailored-agentic-units/registry-agent/registry"
	"github.com/tailored-agentic-units/registry-agent/session"
	"github.com/tailored-agentic-units/registry-agent/tokens"
	"github.com/tailored-agentic-units/registry-agent/tools"
	"github.com/tailored-agentic-units/registry-agent/window"
	"github.com/tailored-agentic-units/registry-agent/worker"
)

const (
	defaultMaxSteps        = 25
	defaultToolTimeout     = 60 * time.Second
	defaultSemanticTimeout = 20 * time.Second
	defaultCompressCache   = 256
)

// DefaultRequest is sent to the worker when the session log holds no user
// message. It is never persisted.
const DefaultRequest = "Please research this guitar model thoroughly using all available tools."

// Config holds initialization parameters for all kernel subsystems.
// Each subsystem section delegates to that subsystem's config-driven constructor.
type Config struct {
	Worker    worker.Config     `json:"worker"`
	Tokens    tokens.Config     `json:"tokens"`
	Compress  compress.Config   `json:"compress"`
	Window    window.Budget     `json:"window"`
	Session   session.Config    `json:"session"`
	Registry  registry.Config   `json:"registry"`
	Normalize normalize.Config  `json:"normalize"`
	Prompt    prompt.Config     `json:"prompt"`
	Fetch     tools.FetchConfig `json:"fetch"`

	MaxToolCalls int             `json:"max_tool_calls,omitempty"`
	MaxSteps     int             `json:"max_steps,omitempty"`
	ToolTimeout  config.Duration `json:"tool_timeout,omitempty"`

	// SemanticCompression summarizes fetched pages with the worker,
	// falling back to pattern extraction.
	SemanticCompression bool            `json:"semantic_compression,omitempty"`
	SemanticTimeout     config.Duration `json:"semantic_timeout,omitempty"`
	CompressCache       int             `json:"compress_cache,omitempty"`

	// RelevanceFilter asks the worker which log messages matter before
	// the window is fitted. Filter failures fit the whole log.
	RelevanceFilter bool `json:"relevance_filter,omitempty"`

	// Observer names a registered observability observer ("slog", "noop").
	Observer string `json:"observer,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Worker:          worker.DefaultConfig(),
		Tokens:          tokens.DefaultConfig(),
		Compress:        compress.DefaultConfig(),
		Window:          window.DefaultBudget(),
		Session:         session.DefaultConfig(),
		Registry:        registry.DefaultConfig(),
		Normalize:       normalize.DefaultConfig(),
		Prompt:          prompt.DefaultConfig(),
		Fetch:           tools.DefaultFetchConfig(),
		MaxToolCalls:    admission.DefaultCap,
		MaxSteps:        defaultMaxSteps,
		ToolTimeout:     config.Duration(defaultToolTimeout),
		SemanticTimeout: config.Duration(defaultSemanticTimeout),
		CompressCache:   defaultCompressCache,
		Observer:        "slog",
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Worker.Merge(&source.Worker)
	c.Tokens.Merge(&source.Tokens)
	c.Compress.Merge(&source.Compress)
	c.Window.Merge(&source.Window)
	c.Session.Merge(&source.Session)
	c.Registry.Merge(&source.Registry)
	c.Normalize.Merge(&source.Normalize)
	c.Prompt.Merge(&source.Prompt)
	c.Fetch.Merge(&source.Fetch)

	if source.MaxToolCalls != 0 {
		c.MaxToolCalls = source.MaxToolCalls
	}
	if source.MaxSteps > 0 {
		c.MaxSteps = source.MaxSteps
	}
	if source.ToolTimeout > 0 {
		c.ToolTimeout = source.ToolTimeout
	}
	if source.SemanticCompression {
		c.SemanticCompression = true
	}
	if source.SemanticTimeout > 0 {
		c.SemanticTimeout = source.SemanticTimeout
	}
	if source.RelevanceFilter {
		c.RelevanceFilter = true
	}
	if source.CompressCache > 0 {
		c.CompressCache = source.CompressCache
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON (with comments) or YAML config file, merges it
// with defaults, and applies registry environment overrides.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	if filename != "" {
		var loaded Config
		if err := config.Load(filename, &loaded); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		cfg.Merge(&loaded)
	}

	cfg.Registry.ApplyEnv(nil)
	return &cfg, nil
}
