package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapkpi/internal/cli/output"
	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/spf13/cobra"
)

type validateOutput struct {
	Stats    core.Stats     `json:"stats"`
	Warnings []core.Warning `json:"warnings"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the sources for data-quality problems",
		Long: `Load the customer and order sources and report data-quality warnings
without touching the store. Schema violations fail the command.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			p, err := cc.Pipeline(nil, false)
			if err != nil {
				return err
			}

			src, warnings, err := p.Validate()
			if err != nil {
				return err
			}
			stats := src.Dataset().Stats()

			r := cc.Renderer
			if r.Mode() == output.ModeJSON {
				return r.JSON(validateOutput{Stats: stats, Warnings: warnings})
			}

			tw := table.NewWriter()
			tw.SetStyle(table.StyleLight)
			tw.AppendRows([]table.Row{
				{"customers", stats.Customers},
				{"orders", stats.Orders},
				{"order items", stats.OrderItems},
				{"revenue", stats.Revenue.StringFixed(2)},
			})
			if stats.Orders > 0 {
				tw.AppendRow(table.Row{"first order", core.FormatValue(stats.FirstOrder)})
				tw.AppendRow(table.Row{"last order", core.FormatValue(stats.LastOrder)})
			}
			_, _ = fmt.Fprintln(r.Out(), tw.Render())

			if len(warnings) == 0 {
				r.Success("no data-quality warnings")
				return nil
			}
			r.Warnings(warnings)
			return nil
		},
	}
}
