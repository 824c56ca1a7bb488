// Package commands implements the leapkpi subcommands.
package commands

import (
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapkpi/internal/cli/config"
	"github.com/leapstack-labs/leapkpi/internal/cli/output"
	"github.com/leapstack-labs/leapkpi/internal/pipeline"
	"github.com/leapstack-labs/leapkpi/internal/state"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds the context from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, ok := config.FromContext(cmd.Context())
	if !ok {
		var err error
		cfg, _, err = config.Load("", nil)
		if err != nil {
			return nil, err
		}
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}, nil
}

// Pipeline builds a pipeline evaluated at the current time.
func (c *CommandContext) Pipeline(ledger state.Store, fresh bool) (*pipeline.Pipeline, error) {
	pc, err := c.Cfg.PipelineConfig(time.Now())
	if err != nil {
		return nil, err
	}
	pc.Fresh = fresh
	return pipeline.New(pc, ledger, c.Logger), nil
}

// OpenLedger opens the run ledger. The caller closes it.
func (c *CommandContext) OpenLedger(cmd *cobra.Command) (*state.SQLiteStore, error) {
	ledger := state.NewSQLiteStore(c.Logger)
	if err := ledger.Open(cmd.Context(), c.Cfg.StatePath); err != nil {
		return nil, err
	}
	return ledger, nil
}
