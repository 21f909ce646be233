package prompt

// Config locates the system prompt template.
type Config struct {
	// Dir is the template directory. Empty uses the built-in template.
	Dir      string `json:"dir,omitempty"`
	Template string `json:"template,omitempty"`
}

// DefaultConfig returns the default prompt configuration (built-in template).
func DefaultConfig() Config {
	return Config{Template: DefaultKey}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Dir != "" {
		c.Dir = source.Dir
	}
	if source.Template != "" {
		c.Template = source.Template
	}
}

// New creates Templates from configuration.
func New(cfg *Config) *Templates {
	var store Store
	if cfg.Dir != "" {
		store = NewFileStore(cfg.Dir)
	}
	return NewTemplates(store, cfg.Template)
}
