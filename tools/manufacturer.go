package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/normalize"
)

// Registry tool names.
const (
	NormalizeManufacturerName = "normalize_manufacturer"
	SearchManufacturersName   = "search_manufacturers"
)

const defaultSearchLimit = 5

// Normalizer resolves manufacturer names. *normalize.Normalizer implements it.
type Normalizer interface {
	Normalize(ctx context.Context, name string) normalize.Match
	Search(ctx context.Context, query string, limit int) []normalize.Match
}

// RegisterManufacturerTools adds normalize_manufacturer and
// search_manufacturers to r, both backed by n.
func RegisterManufacturerTools(r *Registry, n Normalizer) error {
	if err := r.Register(protocol.Tool{
		Name:        NormalizeManufacturerName,
		Description: "Normalizes a manufacturer name against the guitar registry and returns the standardized name.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Raw manufacturer name found during research.",
				},
			},
			"required": []string{"name"},
		},
	}, normalizeHandler(n)); err != nil {
		return err
	}

	return r.Register(protocol.Tool{
		Name:        SearchManufacturersName,
		Description: "Searches the guitar registry for manufacturers similar to a query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Partial or approximate manufacturer name.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of matches to return (default 5).",
				},
			},
			"required": []string{"query"},
		},
	}, searchHandler(n))
}

func normalizeHandler(n Normalizer) Handler {
	return func(ctx context.Context, raw json.RawMessage) (Result, error) {
		var args struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return Result{Content: fmt.Sprintf("Error normalizing '%s': %v", string(raw), err), IsError: true}, nil
		}
		if strings.TrimSpace(args.Name) == "" {
			return Result{Content: "Error normalizing '': name is required", IsError: true}, nil
		}
		if err := ctx.Err(); err != nil {
			return Result{Content: fmt.Sprintf("Error normalizing '%s': %v", args.Name, err), IsError: true}, nil
		}

		m := n.Normalize(ctx, args.Name)
		return Result{Content: "Normalized manufacturer name: " + m.Name}, nil
	}
}

func searchHandler(n Normalizer) Handler {
	return func(ctx context.Context, raw json.RawMessage) (Result, error) {
		var args struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		if res, ok := decodeArgs(raw, &args); !ok {
			return res, nil
		}
		if strings.TrimSpace(args.Query) == "" {
			return Result{Content: "query is required", IsError: true}, nil
		}
		if args.Limit <= 0 {
			args.Limit = defaultSearchLimit
		}

		matches := n.Search(ctx, args.Query, args.Limit)
		if len(matches) == 0 {
			return Result{Content: fmt.Sprintf("No manufacturers found matching '%s'", args.Query)}, nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Manufacturers matching '%s':\n", args.Query)
		for _, m := range matches {
			fmt.Fprintf(&b, "- %s (score %d", m.Name, m.Score)
			if m.Record != nil && m.Record.Country != "" {
				fmt.Fprintf(&b, ", %s", m.Record.Country)
			}
			b.WriteString(")\n")
		}
		return Result{Content: strings.TrimSuffix(b.String(), "\n")}, nil
	}
}
