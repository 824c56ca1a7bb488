package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapkpi/internal/cli/output"
	"github.com/leapstack-labs/leapkpi/internal/state"
	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/spf13/cobra"
)

type runDetail struct {
	Run      *state.Run        `json:"run"`
	KPIs     []state.KPIResult `json:"kpis"`
	Warnings []core.Warning    `json:"warnings"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long:  `List recent runs from the state database, or show one run with its KPI verdicts and warnings.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			ledger, err := cc.OpenLedger(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			if len(args) == 1 {
				return showRun(cmd, cc, ledger, args[0])
			}
			return listRuns(cmd, cc, ledger, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	return cmd
}

func listRuns(cmd *cobra.Command, cc *CommandContext, ledger state.Store, limit int) error {
	runs, err := ledger.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.Mode() == output.ModeJSON {
		return r.JSON(runs)
	}
	if len(runs) == 0 {
		r.Info("no runs recorded")
		return nil
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Run", "Started", "Target", "Mode", "Status", "Duration"})
	for _, run := range runs {
		tw.AppendRow(table.Row{run.ID, run.StartedAt.Local().Format(time.DateTime), run.Target, run.Mode, statusText(r, run.Status), run.Duration().Round(time.Millisecond)})
	}
	if r.Mode() == output.ModeMarkdown {
		_, _ = fmt.Fprintln(r.Out(), tw.RenderMarkdown())
	} else {
		_, _ = fmt.Fprintln(r.Out(), tw.Render())
	}
	return nil
}

func showRun(cmd *cobra.Command, cc *CommandContext, ledger state.Store, id string) error {
	ctx := cmd.Context()
	run, err := ledger.GetRun(ctx, id)
	if err != nil {
		return err
	}
	kpis, err := ledger.GetRunKPIs(ctx, id)
	if err != nil {
		return err
	}
	warnings, err := ledger.GetRunWarnings(ctx, id)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.Mode() == output.ModeJSON {
		return r.JSON(runDetail{Run: run, KPIs: kpis, Warnings: warnings})
	}

	_, _ = fmt.Fprintf(r.Out(), "%s %s\n", r.Styles.Header.Render("Run"), run.ID)
	_, _ = fmt.Fprintf(r.Out(), "Status:  %s\n", statusText(r, run.Status))
	_, _ = fmt.Fprintf(r.Out(), "Target:  %s (%s)\n", run.Target, run.Mode)
	_, _ = fmt.Fprintf(r.Out(), "Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.Error != "" {
		_, _ = fmt.Fprintf(r.Out(), "Error:   %s\n", run.Error)
	}

	if len(kpis) > 0 {
		tw := table.NewWriter()
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"KPI", "Relational", "In-Memory", "Status", "Differences"})
		for _, k := range kpis {
			tw.AppendRow(table.Row{k.KPI.Title(), k.RelationalRows, k.InMemoryRows, r.Status(k.Status), k.Differences})
		}
		_, _ = fmt.Fprintln(r.Out(), tw.Render())
	}
	r.Warnings(warnings)
	return nil
}

func statusText(r *output.Renderer, s state.RunStatus) string {
	switch s {
	case state.RunStatusMatched:
		return r.Styles.Success.Render(string(s))
	case state.RunStatusMismatched, state.RunStatusFailed:
		return r.Styles.Error.Render(string(s))
	default:
		return r.Styles.Warning.Render(string(s))
	}
}
