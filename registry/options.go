package registry

import "github.com/tailored-agentic-units/registry-agent/observability"

type contextOptions struct {
	observer observability.Observer
}

// ContextOption configures a Context built from configuration.
type ContextOption func(*contextOptions)

// WithObserver sets the observer that receives lifecycle events.
func WithObserver(o observability.Observer) ContextOption {
	return func(opts *contextOptions) { opts.observer = o }
}
