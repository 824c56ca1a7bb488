// Package state keeps the run ledger: one record per pipeline run with its
// per-KPI verdicts and data-quality warnings.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/leapkpi/internal/reconcile"
	"github.com/leapstack-labs/leapkpi/pkg/core"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning    RunStatus = "running"
	RunStatusMatched    RunStatus = "matched"
	RunStatusMismatched RunStatus = "mismatched"
	RunStatusFailed     RunStatus = "failed"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run is one pipeline execution.
type Run struct {
	ID          string     `json:"id"`
	Target      string     `json:"target"`
	Mode        string     `json:"mode"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// KPIResult is the stored verdict for one KPI of a run.
type KPIResult struct {
	KPI            core.KPIName     `json:"kpi"`
	RelationalRows int              `json:"relational_rows"`
	InMemoryRows   int              `json:"in_memory_rows"`
	Status         reconcile.Status `json:"status"`
	Differences    int              `json:"differences"`
}

// Store is the run ledger.
type Store interface {
	CreateRun(ctx context.Context, target, mode string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	RecordSummary(ctx context.Context, id string, summary *reconcile.Summary) error
	RecordWarnings(ctx context.Context, id string, warnings []core.Warning) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	GetRunKPIs(ctx context.Context, id string) ([]KPIResult, error)
	GetRunWarnings(ctx context.Context, id string) ([]core.Warning, error)
	Close() error
}

// StatusFor maps a comparison summary to the final run status.
func StatusFor(summary *reconcile.Summary) RunStatus {
	if summary != nil && summary.AllMatch {
		return RunStatusMatched
	}
	return RunStatusMismatched
}
