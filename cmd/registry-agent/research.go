package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/kernel"
	"github.com/tailored-agentic-units/registry-agent/observability"
)

type researchOptions struct {
	manufacturer string
	product      string
	year         string
	session      string
	message      string
	resume       bool
	synthesize   bool
	maxSteps     int
}

func newResearchCommand(global *globalOptions) *cobra.Command {
	opts := &researchOptions{}

	cmd := &cobra.Command{
		Use:   "research",
		Short: "Research a guitar model with the tool-using worker",
		Example: `  registry-agent research --manufacturer Fender --product Mustang --year 1965
  registry-agent research --session 0192f5c4-... --resume`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResearch(cmd.Context(), global, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.manufacturer, "manufacturer", "", "guitar manufacturer")
	flags.StringVar(&opts.product, "product", "", "product or model name")
	flags.StringVar(&opts.year, "year", "", "model year")
	flags.StringVar(&opts.session, "session", "", "session id (generated when empty)")
	flags.StringVarP(&opts.message, "message", "m", "", "request sent to the worker instead of the default")
	flags.BoolVar(&opts.resume, "resume", false, "continue the session from its last checkpoint")
	flags.BoolVar(&opts.synthesize, "synthesize", true, "condense the findings into a research record")
	flags.IntVar(&opts.maxSteps, "max-steps", 0, "worker invocations allowed (overrides config)")
	cmd.MarkFlagsMutuallyExclusive("resume", "manufacturer")
	return cmd
}

func runResearch(ctx context.Context, global *globalOptions, opts *researchOptions) error {
	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}
	if opts.maxSteps > 0 {
		cfg.MaxSteps = opts.maxSteps
	}

	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return err
	}
	recorder := observability.NewRecorder()

	k, err := kernel.New(cfg, kernel.WithObserver(observability.Tee(observer, recorder)))
	if err != nil {
		return err
	}
	defer k.Close(context.Background())

	if err := k.Start(ctx); err != nil {
		return err
	}

	var (
		req    protocol.ResearchRequest
		result *kernel.Result
	)
	if opts.resume {
		if opts.session == "" {
			return errors.New("--resume requires --session")
		}
		if cp, cpErr := k.Sessions().LoadCheckpoint(ctx, opts.session); cpErr == nil {
			req = protocol.ResearchRequest{
				Manufacturer: cp.Meta["manufacturer"],
				ProductName:  cp.Meta["product_name"],
				Year:         cp.Meta["year"],
			}
		}
		result, err = k.Resume(ctx, opts.session)
	} else {
		req = protocol.ResearchRequest{Manufacturer: opts.manufacturer, ProductName: opts.product, Year: opts.year}
		result, err = k.Run(ctx, opts.session, req, opts.message)
	}

	if result != nil {
		fmt.Fprint(os.Stdout, renderResult(result))
		fmt.Fprint(os.Stdout, renderSummary(recorder))
	}
	if err != nil {
		if errors.Is(err, kernel.ErrStepBudgetExhausted) && result != nil {
			fmt.Fprintln(os.Stderr, styles.muted.Render("resume with --session "+result.SessionID+" --resume"))
		}
		return err
	}

	if !opts.synthesize {
		return nil
	}
	synth, err := k.Synthesize(ctx, req, result.Messages)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, renderRecord(synth))
	return nil
}
