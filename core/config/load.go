package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Load reads filename into v. Files ending in .yaml or .yml are parsed as
// YAML; anything else is parsed as JSON, with comments and trailing commas
// allowed. Both formats honor the json struct tags of v.
func Load(filename string, v any) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return Decode(filepath.Ext(filename), data, v)
}

// Decode parses data in the format implied by ext into v.
func Decode(ext string, data []byte, v any) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		if generic == nil {
			return nil
		}
		normalized, err := json.Marshal(generic)
		if err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		data = normalized
	default:
		data = jsonc.ToJSON(data)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}
