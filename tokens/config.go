package tokens

// DefaultModel is the model family whose encoding is used when none is
// configured.
const DefaultModel = "gpt-4o-mini"

// Config selects the encoding. Encoding takes precedence over Model.
type Config struct {
	Encoding string `json:"encoding,omitempty"`
	Model    string `json:"model,omitempty"`
}

// DefaultConfig returns the default token configuration.
func DefaultConfig() Config {
	return Config{Model: DefaultModel}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Encoding != "" {
		c.Encoding = source.Encoding
	}
	if source.Model != "" {
		c.Model = source.Model
	}
}

// New creates a Counter from configuration.
func New(cfg *Config) (Counter, error) {
	if cfg.Encoding != "" {
		return NewCounter(cfg.Encoding)
	}
	return ForModel(cfg.Model)
}
