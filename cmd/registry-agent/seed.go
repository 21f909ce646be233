package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/registry-agent/prompt"
	"github.com/tailored-agentic-units/registry-agent/registry"
)

func newSeedCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the manufacturer registry and install the prompt template",
		Long: `Seed creates the manufacturers table in the configured DuckDB registry,
loads the sample manufacturers, and writes the built-in research prompt to
the configured prompt directory when it is missing. Both steps are skipped
when already done.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), global)
		},
	}
}

func runSeed(ctx context.Context, global *globalOptions) error {
	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}

	if !cfg.Registry.Active() {
		return errors.New("no registry configured: set registry.dsn or GUITAR_REGISTRY_DB_URL")
	}

	store, err := registry.OpenSQL(ctx, cfg.Registry.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	exists, err := store.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		fmt.Fprintln(os.Stdout, styles.muted.Render("registry already seeded"))
	} else {
		records := registry.SampleManufacturers()
		if err := store.Seed(ctx, records); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, styles.success.Render(fmt.Sprintf("seeded %d manufacturers", len(records))))
	}

	templates := prompt.New(&cfg.Prompt)
	installed, err := templates.Install(ctx)
	if err != nil {
		return err
	}
	if installed {
		fmt.Fprintln(os.Stdout, styles.success.Render("installed prompt "+templates.Key()))
	}
	return nil
}
