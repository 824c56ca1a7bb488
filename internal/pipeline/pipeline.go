// Package pipeline wires loading, validation, storage, both engines,
// reconciliation, export and the run ledger into one batch run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapkpi/internal/inmemory"
	"github.com/leapstack-labs/leapkpi/internal/kpi"
	"github.com/leapstack-labs/leapkpi/internal/loader"
	"github.com/leapstack-labs/leapkpi/internal/reconcile"
	"github.com/leapstack-labs/leapkpi/internal/relational"
	"github.com/leapstack-labs/leapkpi/internal/report"
	"github.com/leapstack-labs/leapkpi/internal/state"
	"github.com/leapstack-labs/leapkpi/internal/store"
	"github.com/leapstack-labs/leapkpi/internal/validate"
	"github.com/leapstack-labs/leapkpi/pkg/adapter"
	"github.com/leapstack-labs/leapkpi/pkg/core"
)

// DefaultQueryTimeout bounds each blocking store call.
const DefaultQueryTimeout = 30 * time.Second

// Engine names accepted by ComputeKPIs.
const (
	EngineRelational = "relational"
	EngineInMemory   = "memory"
)

// Config holds the inputs of a run.
type Config struct {
	CustomersPath string
	OrdersPath    string
	// OutputDir receives the report files; empty skips export.
	OutputDir string
	Format    report.Format

	Target core.TargetConfig
	// Fresh empties the store before merging.
	Fresh bool

	Params       kpi.Params
	Compare      reconcile.Options
	QueryTimeout time.Duration
}

// Result is the outcome of a full run.
type Result struct {
	RunID      string
	Relational *core.KPISet
	InMemory   *core.KPISet
	Summary    *reconcile.Summary
	Warnings   []core.Warning
	Merge      *store.MergeResult
	Files      []string
}

// IngestResult is the outcome of loading and merging without computing KPIs.
type IngestResult struct {
	Warnings []core.Warning
	Merge    *store.MergeResult
	Counts   store.Counts
}

// Pipeline runs batches against one configuration.
type Pipeline struct {
	cfg    Config
	ledger state.Store
	logger *slog.Logger
}

// New creates a Pipeline. ledger may be nil to skip run bookkeeping. If
// logger is nil, a discard logger is used.
func New(cfg Config, ledger state.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.Params.Location == nil {
		cfg.Params.Location = time.UTC
	}
	if cfg.Params.Now.IsZero() {
		cfg.Params.Now = time.Now()
	}
	if cfg.Compare.Mode == "" {
		cfg.Compare = reconcile.DefaultOptions()
	}
	if cfg.Format == "" {
		cfg.Format = report.FormatCSV
	}
	return &Pipeline{cfg: cfg, ledger: ledger, logger: logger}
}

// Run executes load, validate, merge, both engines, reconcile and export.
// A mismatch is reported in the result; only fatal errors are returned.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	var run *state.Run
	if p.ledger != nil {
		var err error
		run, err = p.ledger.CreateRun(ctx, p.cfg.Target.Type, string(p.cfg.Compare.Mode))
		if err != nil {
			return nil, fmt.Errorf("ledger: %w", err)
		}
		res.RunID = run.ID
	}

	err := p.run(ctx, res)
	if run != nil {
		p.finish(ctx, run.ID, res, err)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, res *Result) error {
	logger := p.logger.With(slog.String("run_id", res.RunID))
	start := time.Now()

	src, warnings, err := p.Validate()
	res.Warnings = warnings
	if err != nil {
		return err
	}
	ds := src.Dataset()
	logger.Info("dataset ready",
		slog.Int("customers", len(ds.Customers)),
		slog.Int("orders", len(ds.Orders)),
		slog.Int("items", len(ds.OrderItems)),
		slog.Int("warnings", len(warnings)),
	)

	adp, err := p.open(ctx)
	if err != nil {
		return err
	}
	defer p.close(adp)

	if res.Merge, err = p.merge(ctx, adp, ds); err != nil {
		return err
	}

	rel := relational.New(adp, p.cfg.Params.Location, logger, relational.WithQueryTimeout(p.cfg.QueryTimeout))
	if res.Relational, err = kpi.ComputeAll(ctx, rel, p.cfg.Params, logger); err != nil {
		return storeError("relational kpis", err)
	}

	mem := inmemory.New(ds, p.cfg.Params.Location, logger)
	if res.InMemory, err = kpi.ComputeAll(ctx, mem, p.cfg.Params, logger); err != nil {
		return fmt.Errorf("in-memory kpis: %w", err)
	}

	res.Summary, err = reconcile.Compare(res.Relational.Tables(), res.InMemory.Tables(), p.cfg.Compare)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	for _, r := range res.Summary.Rows {
		for _, d := range r.Differences {
			logger.Debug("difference", slog.String("detail", d.String()))
		}
	}

	if p.cfg.OutputDir != "" {
		if res.Files, err = p.export(ctx, res); err != nil {
			return err
		}
	}

	logger.Info("run finished",
		slog.Bool("all_match", res.Summary.AllMatch),
		slog.Int("files", len(res.Files)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// finish records the outcome in the ledger. Ledger failures are logged and
// never replace the run's own error.
func (p *Pipeline) finish(ctx context.Context, id string, res *Result, runErr error) {
	ctx = context.WithoutCancel(ctx)
	status := state.RunStatusFailed
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	} else {
		status = state.StatusFor(res.Summary)
		if err := p.ledger.RecordSummary(ctx, id, res.Summary); err != nil {
			p.logger.Warn("failed to record summary", slog.String("run_id", id), slog.String("error", err.Error()))
		}
	}
	if err := p.ledger.RecordWarnings(ctx, id, res.Warnings); err != nil {
		p.logger.Warn("failed to record warnings", slog.String("run_id", id), slog.String("error", err.Error()))
	}
	if err := p.ledger.CompleteRun(ctx, id, status, errMsg); err != nil {
		p.logger.Warn("failed to complete run", slog.String("run_id", id), slog.String("error", err.Error()))
	}
}

// Validate loads both sources and runs the data-quality checks.
func (p *Pipeline) Validate() (*loader.Source, []core.Warning, error) {
	src, err := loader.New(p.cfg.Params.Location, p.logger).Load(p.cfg.CustomersPath, p.cfg.OrdersPath)
	if err != nil {
		return nil, nil, err
	}
	warnings := append([]core.Warning(nil), src.Warnings...)

	found, err := validate.Dataset(src.Raw())
	warnings = append(warnings, found...)
	if err != nil {
		return nil, warnings, err
	}
	for _, w := range warnings {
		p.logger.Warn("data quality", slog.String("code", string(w.Code)), slog.Int("count", w.Count), slog.String("message", w.Message))
	}
	return src, warnings, nil
}

// Ingest loads, validates and merges the sources into the store.
func (p *Pipeline) Ingest(ctx context.Context) (*IngestResult, error) {
	src, warnings, err := p.Validate()
	if err != nil {
		return nil, err
	}

	adp, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	defer p.close(adp)

	res := &IngestResult{Warnings: warnings}
	if res.Merge, err = p.merge(ctx, adp, src.Dataset()); err != nil {
		return nil, err
	}

	st := store.New(adp, p.cfg.Params.Location, p.logger)
	err = p.withTimeout(ctx, func(ctx context.Context) error {
		var cerr error
		res.Counts, cerr = st.Counts(ctx)
		return cerr
	})
	if err != nil {
		return nil, storeError("count rows", err)
	}
	return res, nil
}

// ComputeKPIs computes one side only. The relational engine reads the store
// as it is; the in-memory engine reads the sources.
func (p *Pipeline) ComputeKPIs(ctx context.Context, engine string) (*core.KPISet, error) {
	switch engine {
	case EngineRelational:
		adp, err := p.open(ctx)
		if err != nil {
			return nil, err
		}
		defer p.close(adp)

		rel := relational.New(adp, p.cfg.Params.Location, p.logger, relational.WithQueryTimeout(p.cfg.QueryTimeout))
		set, err := kpi.ComputeAll(ctx, rel, p.cfg.Params, p.logger)
		if err != nil {
			return nil, storeError("relational kpis", err)
		}
		return set, nil

	case EngineInMemory:
		src, _, err := p.Validate()
		if err != nil {
			return nil, err
		}
		return kpi.ComputeAll(ctx, inmemory.New(src.Dataset(), p.cfg.Params.Location, p.logger), p.cfg.Params, p.logger)

	default:
		return nil, fmt.Errorf("unknown engine %q (want %s or %s)", engine, EngineRelational, EngineInMemory)
	}
}

func (p *Pipeline) open(ctx context.Context) (adapter.Adapter, error) {
	cfg := p.cfg.Target.AdapterConfig()
	adp, err := adapter.NewAdapter(cfg, p.logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	err = p.withTimeout(ctx, func(ctx context.Context) error {
		return adp.Connect(ctx, cfg)
	})
	if err != nil {
		return nil, core.SourceUnavailable("open store", err)
	}
	p.logger.Debug("store opened", slog.String("type", cfg.Type))
	return adp, nil
}

func (p *Pipeline) close(adp adapter.Adapter) {
	if err := adp.Close(); err != nil {
		p.logger.Warn("failed to close store", slog.String("error", err.Error()))
	}
}

func (p *Pipeline) merge(ctx context.Context, adp adapter.Adapter, ds *core.Dataset) (*store.MergeResult, error) {
	st := store.New(adp, p.cfg.Params.Location, p.logger)

	if err := p.withTimeout(ctx, st.EnsureSchema); err != nil {
		return nil, storeError("ensure schema", err)
	}
	if p.cfg.Fresh {
		if err := p.withTimeout(ctx, st.Truncate); err != nil {
			return nil, storeError("truncate", err)
		}
	}

	var res *store.MergeResult
	err := p.withTimeout(ctx, func(ctx context.Context) error {
		var merr error
		res, merr = st.Merge(ctx, ds)
		return merr
	})
	if err != nil {
		return nil, storeError("merge", err)
	}
	return res, nil
}

func (p *Pipeline) export(ctx context.Context, res *Result) ([]string, error) {
	exports := report.KPIExports(EngineRelational, res.Relational.Tables())
	exports = append(exports, report.KPIExports("in_memory", res.InMemory.Tables())...)
	exports = append(exports, report.SummaryExport(res.Summary.Table()))

	files, err := report.NewWriter(p.cfg.OutputDir, p.cfg.Format, p.logger).Write(ctx, exports)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return files, nil
}

func (p *Pipeline) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.QueryTimeout)
	defer cancel()
	return fn(ctx)
}

// storeError marks an expired store call as the store being unavailable.
func storeError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.SourceUnavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
