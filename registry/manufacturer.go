// Package registry reads the guitar manufacturer registry and holds the
// in-memory cache that the name normalizer scores against.
//
// The cache lives on an explicit Context with Init, Refresh and Teardown;
// nothing in this package is process-global.
package registry

import (
	"context"
	"slices"
	"strings"
)

// Manufacturer is one registry entry. Nullable columns map to zero values.
type Manufacturer struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Country     string `json:"country,omitempty"`
	FoundedYear int    `json:"founded_year,omitempty"`
	Website     string `json:"website,omitempty"`
	Status      string `json:"status,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Active reports whether the entry counts as active. A missing status is
// treated as active.
func (m Manufacturer) Active() bool {
	return m.Status == "" || strings.EqualFold(m.Status, "active")
}

// Store is the registry backing store. The runtime only reads it.
type Store interface {
	// Active returns all active manufacturers ordered by name.
	Active(ctx context.Context) ([]Manufacturer, error)
}

// StaticStore serves a fixed list. It backs tests and registry-less runs.
type StaticStore []Manufacturer

func (s StaticStore) Active(ctx context.Context) ([]Manufacturer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Manufacturer, 0, len(s))
	for _, m := range s {
		if m.Active() {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b Manufacturer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}
