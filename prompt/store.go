// Package prompt loads and renders the research system prompt.
//
// Templates are Markdown files whose {manufacturer}, {model} and {year}
// placeholders are filled from a ResearchRequest.
package prompt

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	ErrKeyNotFound = errors.New("template not found")
	ErrLoadFailed  = errors.New("load failed")
	ErrSaveFailed  = errors.New("save failed")
)

// Entry is a template file. Keys are /-separated paths relative to the
// store root.
type Entry struct {
	Key   string
	Value []byte
}

// Store reads and writes template files.
type Store interface {
	// List returns all available keys in the store.
	List(ctx context.Context) ([]string, error)
	// Load retrieves entries for the specified keys.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save persists entries, creating or overwriting as needed.
	Save(ctx context.Context, entries ...Entry) error
}
