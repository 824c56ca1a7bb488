package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/leapkpi/internal/reconcile"
	"github.com/leapstack-labs/leapkpi/pkg/core"
)

// RecordSummary stores the per-KPI verdicts of a run, replacing earlier ones.
func (s *SQLiteStore) RecordSummary(ctx context.Context, id string, summary *reconcile.Summary) error {
	if s.db == nil {
		return errNotOpened
	}
	if summary == nil {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM run_kpis WHERE run_id = ?`, id); err != nil {
			return err
		}
		for i, r := range summary.Rows {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO run_kpis (run_id, position, kpi, relational_rows, in_memory_rows, status, differences)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, i, string(r.KPI), r.RelationalRows, r.InMemoryRows, string(r.Status), len(r.Differences),
			)
			if err != nil {
				return fmt.Errorf("kpi %s: %w", r.KPI, err)
			}
		}
		return nil
	})
}

// RecordWarnings stores the data-quality warnings of a run, replacing earlier ones.
func (s *SQLiteStore) RecordWarnings(ctx context.Context, id string, warnings []core.Warning) error {
	if s.db == nil {
		return errNotOpened
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM run_warnings WHERE run_id = ?`, id); err != nil {
			return err
		}
		for i, w := range warnings {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO run_warnings (run_id, position, code, count, message) VALUES (?, ?, ?, ?, ?)`,
				id, i, string(w.Code), w.Count, w.Message,
			)
			if err != nil {
				return fmt.Errorf("warning %s: %w", w.Code, err)
			}
		}
		return nil
	})
}

// GetRunKPIs returns the stored verdicts of a run in report order.
func (s *SQLiteStore) GetRunKPIs(ctx context.Context, id string) ([]KPIResult, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kpi, relational_rows, in_memory_rows, status, differences
		 FROM run_kpis WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run kpis: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []KPIResult
	for rows.Next() {
		var (
			r            KPIResult
			name, status string
		)
		if err := rows.Scan(&name, &r.RelationalRows, &r.InMemoryRows, &status, &r.Differences); err != nil {
			return nil, fmt.Errorf("failed to scan run kpi: %w", err)
		}
		r.KPI = core.KPIName(name)
		r.Status = reconcile.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRunWarnings returns the stored warnings of a run.
func (s *SQLiteStore) GetRunWarnings(ctx context.Context, id string) ([]core.Warning, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT code, count, message FROM run_warnings WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run warnings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.Warning
	for rows.Next() {
		var (
			w    core.Warning
			code string
		)
		if err := rows.Scan(&code, &w.Count, &w.Message); err != nil {
			return nil, fmt.Errorf("failed to scan run warning: %w", err)
		}
		w.Code = core.WarningCode(code)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
