package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapkpi/internal/pipeline"
	"github.com/leapstack-labs/leapkpi/internal/state"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Fresh    bool
	NoState  bool
	NoExport bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute KPIs on both paths and compare them",
		Long: `Load the customer and order sources, merge them into the relational store,
compute every KPI with SQL and in memory, and compare the two result sets.

Reports for both engines and the comparison summary are written to the
output directory. A mismatch is reported but does not fail the command.`,
		Example: `  # Run with leapkpi.yaml
  leapkpi run

  # Use an empty store and Markdown reports
  leapkpi run --fresh --format markdown

  # Compare row counts only
  leapkpi run --mode rowcount`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Fresh, "fresh", false, "Empty the store before merging")
	cmd.Flags().BoolVar(&opts.NoState, "no-state", false, "Do not record the run in the state database")
	cmd.Flags().BoolVar(&opts.NoExport, "no-export", false, "Do not write report files")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	var ledger state.Store
	if !opts.NoState {
		l, err := cc.OpenLedger(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = l.Close() }()
		ledger = l
	}

	if opts.NoExport {
		cc.Cfg.OutputDir = ""
	}
	p, err := cc.Pipeline(ledger, opts.Fresh)
	if err != nil {
		return err
	}

	res, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}
	return printRunResult(cc, res)
}

func printRunResult(cc *CommandContext, res *pipeline.Result) error {
	r := cc.Renderer
	r.Warnings(res.Warnings)
	if err := r.Summary(res.Summary); err != nil {
		return err
	}
	if len(res.Files) > 0 {
		r.Info(fmt.Sprintf("%d report files written to %s", len(res.Files), cc.Cfg.OutputDir))
	}
	if res.RunID != "" {
		r.Info("run " + res.RunID)
	}
	return nil
}
