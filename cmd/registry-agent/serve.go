package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/registry-agent/kernel"
	"github.com/tailored-agentic-units/registry-agent/observability"
	"github.com/tailored-agentic-units/registry-agent/server"
)

func newServeCommand(global *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve research and normalization over Connect",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			observer, err := observability.GetObserver(cfg.Observer)
			if err != nil {
				return err
			}

			k, err := kernel.New(cfg, kernel.WithObserver(observer))
			if err != nil {
				return err
			}
			defer k.Close(context.Background())

			if err := k.Start(ctx); err != nil {
				return err
			}

			slog.Info("serving", "addr", addr,
				"procedures", []string{server.NormalizeProcedure, server.SearchProcedure, server.ResearchProcedure})
			return server.New(k, k.Normalizer(), observer).Serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	return cmd
}
