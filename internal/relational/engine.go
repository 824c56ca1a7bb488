// Package relational computes the KPIs as SQL aggregations inside the
// relational store.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapkpi/internal/kpi"
	"github.com/leapstack-labs/leapkpi/pkg/adapter"
	"github.com/leapstack-labs/leapkpi/pkg/core"
)

// Engine implements kpi.Engine by querying the store through an adapter.
type Engine struct {
	adp     adapter.Adapter
	loc     *time.Location
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithQueryTimeout bounds every query. Zero means no bound beyond ctx.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// New creates a relational engine. Order times are stored as UTC wall clocks
// and reported in loc. If logger is nil, a discard logger is used.
func New(adp adapter.Adapter, loc *time.Location, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if loc == nil {
		loc = time.UTC
	}
	e := &Engine{adp: adp, loc: loc, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements kpi.Engine.
func (e *Engine) Name() string { return "relational" }

// query runs q and hands every row to scan. The per-call timeout covers the
// whole iteration.
func (e *Engine) query(ctx context.Context, name core.KPIName, q string, scan func(*sql.Rows) error, args ...any) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := e.adp.Query(ctx, q, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	n := 0
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan %s row: %w", name, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read %s rows: %w", name, err)
	}

	e.logger.Debug("kpi query finished",
		slog.String("kpi", string(name)),
		slog.Int("rows", n),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// RepeatCustomers implements kpi.Engine.
func (e *Engine) RepeatCustomers(ctx context.Context) ([]core.RepeatCustomer, error) {
	var out []core.RepeatCustomer
	err := e.query(ctx, core.KPIRepeatCustomers, repeatCustomersSQL, func(rows *sql.Rows) error {
		var r core.RepeatCustomer
		var orders intCol
		var spent moneyCol
		if err := rows.Scan(&r.CustomerID, &r.CustomerName, &r.MobileNumber, &r.Region, &orders, &spent); err != nil {
			return err
		}
		r.OrderCount = int64(orders)
		r.TotalSpent = kpi.RoundMoney(spent.Decimal)
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MonthlyTrends implements kpi.Engine.
func (e *Engine) MonthlyTrends(ctx context.Context) ([]core.MonthlyTrend, error) {
	var out []core.MonthlyTrend
	err := e.query(ctx, core.KPIMonthlyTrends, monthlyTrendsSQL(e.adp.Dialect()), func(rows *sql.Rows) error {
		var r core.MonthlyTrend
		var orders, items, customers intCol
		var revenue moneyCol
		if err := rows.Scan(&r.Month, &orders, &items, &revenue, &customers); err != nil {
			return err
		}
		r.OrderCount = int64(orders)
		r.TotalItems = int64(items)
		r.TotalRevenue = kpi.RoundMoney(revenue.Decimal)
		r.AvgOrderValue = kpi.Average(r.TotalRevenue, r.OrderCount)
		r.UniqueCustomers = int64(customers)
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RegionalRevenue implements kpi.Engine.
func (e *Engine) RegionalRevenue(ctx context.Context) ([]core.RegionalRevenue, error) {
	var out []core.RegionalRevenue
	err := e.query(ctx, core.KPIRegionalRevenue, regionalRevenueSQL, func(rows *sql.Rows) error {
		var r core.RegionalRevenue
		var customers, orders intCol
		var revenue, maxValue moneyCol
		if err := rows.Scan(&r.Region, &customers, &orders, &revenue, &maxValue); err != nil {
			return err
		}
		r.CustomerCount = int64(customers)
		r.OrderCount = int64(orders)
		r.TotalRevenue = kpi.RoundMoney(revenue.Decimal)
		r.AvgOrderValue = kpi.Average(r.TotalRevenue, r.OrderCount)
		r.MaxOrderValue = kpi.RoundMoney(maxValue.Decimal)
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TopCustomers implements kpi.Engine.
func (e *Engine) TopCustomers(ctx context.Context, cutoff time.Time, topN int) ([]core.TopCustomer, error) {
	if err := kpi.CheckTopN(topN); err != nil {
		return nil, err
	}

	d := e.adp.Dialect()
	var out []core.TopCustomer
	err := e.query(ctx, core.KPITopCustomers, topCustomersSQL(topN), func(rows *sql.Rows) error {
		var r core.TopCustomer
		var orders intCol
		var spent moneyCol
		var last, first timeCol
		if err := rows.Scan(&r.CustomerID, &r.CustomerName, &r.MobileNumber, &r.Region, &orders, &spent, &last, &first); err != nil {
			return err
		}
		lastUTC, err := d.DecodeTime(last.raw, time.UTC)
		if err != nil {
			return err
		}
		firstUTC, err := d.DecodeTime(first.raw, time.UTC)
		if err != nil {
			return err
		}
		r.LastOrderDate = lastUTC.In(e.loc)
		r.FirstOrderDate = firstUTC.In(e.loc)
		r.OrderCount = int64(orders)
		r.TotalSpent = kpi.RoundMoney(spent.Decimal)
		out = append(out, r)
		return nil
	}, d.EncodeTime(cutoff, time.UTC))
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ kpi.Engine = (*Engine)(nil)
