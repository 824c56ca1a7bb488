package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapkpi/internal/pipeline"
	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/spf13/cobra"
)

// NewKPIsCommand creates the kpis command.
func NewKPIsCommand() *cobra.Command {
	var engine string

	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Compute and print the KPIs of one engine",
		Long: `Compute the four KPIs with a single engine and print them.

The relational engine reads the store as it is; run "leapkpi ingest" first.
The memory engine reads the source files.`,
		Example: `  leapkpi kpis --engine relational
  leapkpi kpis --engine memory -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			p, err := cc.Pipeline(nil, false)
			if err != nil {
				return err
			}

			set, err := p.ComputeKPIs(cmd.Context(), engine)
			if err != nil {
				return err
			}

			tables := set.Tables()
			for _, name := range core.AllKPIs {
				if err := cc.Renderer.Table(fmt.Sprintf("%s (%s)", name.Title(), engine), tables[name]); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&engine, "engine", "e", pipeline.EngineRelational, "Engine to run (relational|memory)")
	_ = cmd.RegisterFlagCompletionFunc("engine", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{pipeline.EngineRelational, pipeline.EngineInMemory}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}
