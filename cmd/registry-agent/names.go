package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/registry-agent/normalize"
	"github.com/tailored-agentic-units/registry-agent/observability"
	"github.com/tailored-agentic-units/registry-agent/registry"
)

func newNormalizeCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize NAME",
		Short: "Map a manufacturer name to its canonical registry name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNormalizer(cmd.Context(), global, func(n *normalize.Normalizer) error {
				fmt.Fprint(os.Stdout, renderMatch(n.Normalize(cmd.Context(), strings.Join(args, " "))))
				return nil
			})
		},
	}
}

func newSearchCommand(global *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "List registry manufacturers resembling a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNormalizer(cmd.Context(), global, func(n *normalize.Normalizer) error {
				query := strings.Join(args, " ")
				fmt.Fprint(os.Stdout, renderMatches(query, n.Search(cmd.Context(), query, limit)))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum matches to list (0 for all)")
	return cmd
}

// withNormalizer opens the configured registry, preloads it and passes a
// normalizer over it to fn. No model credentials are needed.
func withNormalizer(ctx context.Context, global *globalOptions, fn func(*normalize.Normalizer) error) error {
	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}

	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return err
	}

	if !cfg.Registry.Active() {
		slog.Warn("manufacturer registry is not configured; names are returned unchanged")
	}

	rc := registry.NewContextFromConfig(&cfg.Registry, registry.WithObserver(observer))
	defer rc.Teardown(context.Background())

	if err := rc.Init(ctx); err != nil {
		slog.Warn("registry preload failed", "error", err)
	}

	return fn(normalize.New(rc, &cfg.Normalize, observer))
}
