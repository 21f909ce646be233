package worker

import (
	"time"

	"github.com/tailored-agentic-units/registry-agent/core/config"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// Config configures the OpenAI-compatible worker.
type Config struct {
	Model       string          `json:"model,omitempty"`
	BaseURL     string          `json:"base_url,omitempty"`
	APIKey      string          `json:"api_key,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   int64           `json:"max_tokens,omitempty"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
	BaseDelay   config.Duration `json:"base_delay,omitempty"`
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		Model:       DefaultModel,
		MaxAttempts: 3,
		BaseDelay:   config.Duration(time.Second),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.Temperature != nil {
		t := *source.Temperature
		c.Temperature = &t
	}
	if source.MaxTokens > 0 {
		c.MaxTokens = source.MaxTokens
	}
	if source.MaxAttempts > 0 {
		c.MaxAttempts = source.MaxAttempts
	}
	if source.BaseDelay > 0 {
		c.BaseDelay = source.BaseDelay
	}
}

// New creates the configured worker: an OpenAI adapter wrapped with
// retries on transient failures.
func New(cfg *Config) (Worker, error) {
	merged := DefaultConfig()
	if cfg != nil {
		merged.Merge(cfg)
	}
	if merged.Model == "" {
		return nil, config.NewError("worker", "model is required", nil)
	}

	return WithRetry(NewOpenAI(merged, nil), RetryPolicy{
		MaxAttempts: merged.MaxAttempts,
		BaseDelay:   merged.BaseDelay.Std(),
		ShouldRetry: Transient,
	}), nil
}
