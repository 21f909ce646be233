// Command registry-agent researches guitars with a tool-using model and
// normalizes manufacturer names against the registry.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tailored-agentic-units/registry-agent/kernel"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, styles.failure.Render("error:"), err)
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	verbose    bool
}

func (o *globalOptions) bind(flags *pflag.FlagSet) {
	flags.StringVarP(&o.configFile, "config", "c", "", "path to a JSON (comments allowed) or YAML config file")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "enable debug logging to stderr")
}

func (o *globalOptions) loadConfig() (*kernel.Config, error) {
	cfg, err := kernel.LoadConfig(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "registry-agent",
		Short:         "Research guitars and normalize manufacturer names",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(opts.verbose))
		},
	}

	opts.bind(root.PersistentFlags())

	root.AddCommand(
		newResearchCommand(opts),
		newNormalizeCommand(opts),
		newSearchCommand(opts),
		newSeedCommand(opts),
		newServeCommand(opts),
	)
	return root
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	}))
}
