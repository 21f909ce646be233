// Package config holds the configuration helpers shared by every subsystem:
// file loading for JSON, JSON with comments and YAML, and the
// ConfigurationError raised when a subsystem cannot be set up.
package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every *ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a fatal setup problem: an unknown token
// encoding, a missing prompt template, an invalid limit. It is surfaced
// immediately and never retried.
type ConfigurationError struct {
	Component string
	Reason    string
	Err       error
}

// NewError creates a ConfigurationError for component.
func NewError(component, reason string, err error) *ConfigurationError {
	return &ConfigurationError{Component: component, Reason: reason, Err: err}
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
