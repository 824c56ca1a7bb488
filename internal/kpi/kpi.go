// Package kpi defines the contract both aggregation engines implement and
// the run parameters they share.
package kpi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/shopspring/decimal"
)

// Defaults for the top customers KPI.
const (
	DefaultWindow   = 30 * 24 * time.Hour
	DefaultTopN     = 10
	DefaultTimezone = "Asia/Kolkata"
)

// Engine computes the four KPIs from one representation of the data.
//
// Both implementations must return identical results for the same dataset:
// the same rows, in the same order, with money rounded to two places.
type Engine interface {
	Name() string
	RepeatCustomers(ctx context.Context) ([]core.RepeatCustomer, error)
	MonthlyTrends(ctx context.Context) ([]core.MonthlyTrend, error)
	RegionalRevenue(ctx context.Context) ([]core.RegionalRevenue, error)
	TopCustomers(ctx context.Context, cutoff time.Time, topN int) ([]core.TopCustomer, error)
}

// Params are the run-level inputs shared by both engines.
type Params struct {
	// Location is the business zone; month keys and the cutoff use it.
	Location *time.Location
	Window   time.Duration
	TopN     int
	// Now is the reference instant for the window.
	Now time.Time
}

// DefaultParams returns the defaults evaluated at now.
func DefaultParams(now time.Time) (Params, error) {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return Params{}, fmt.Errorf("load %s: %w", DefaultTimezone, err)
	}
	return Params{Location: loc, Window: DefaultWindow, TopN: DefaultTopN, Now: now}, nil
}

// Cutoff is the earliest order instant inside the window, computed once per
// run so both engines filter on the same value.
func (p Params) Cutoff() time.Time {
	return p.Now.In(p.Location).Add(-p.Window)
}

// ComputeAll runs the four KPIs of an engine in report order.
func ComputeAll(ctx context.Context, eng Engine, p Params, logger *slog.Logger) (*core.KPISet, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("engine", eng.Name()))

	var set core.KPISet
	var err error

	start := time.Now()
	if set.RepeatCustomers, err = eng.RepeatCustomers(ctx); err != nil {
		return nil, fmt.Errorf("%s %s: %w", eng.Name(), core.KPIRepeatCustomers, err)
	}
	logger.Debug("kpi computed", slog.String("kpi", string(core.KPIRepeatCustomers)), slog.Int("rows", len(set.RepeatCustomers)))

	if set.MonthlyTrends, err = eng.MonthlyTrends(ctx); err != nil {
		return nil, fmt.Errorf("%s %s: %w", eng.Name(), core.KPIMonthlyTrends, err)
	}
	logger.Debug("kpi computed", slog.String("kpi", string(core.KPIMonthlyTrends)), slog.Int("rows", len(set.MonthlyTrends)))

	if set.RegionalRevenue, err = eng.RegionalRevenue(ctx); err != nil {
		return nil, fmt.Errorf("%s %s: %w", eng.Name(), core.KPIRegionalRevenue, err)
	}
	logger.Debug("kpi computed", slog.String("kpi", string(core.KPIRegionalRevenue)), slog.Int("rows", len(set.RegionalRevenue)))

	if set.TopCustomers, err = eng.TopCustomers(ctx, p.Cutoff(), p.TopN); err != nil {
		return nil, fmt.Errorf("%s %s: %w", eng.Name(), core.KPITopCustomers, err)
	}
	logger.Debug("kpi computed", slog.String("kpi", string(core.KPITopCustomers)), slog.Int("rows", len(set.TopCustomers)))

	logger.Info("kpis computed", slog.Duration("elapsed", time.Since(start)))
	return &set, nil
}

// CheckTopN rejects a negative top customers limit.
func CheckTopN(topN int) error {
	if topN < 0 {
		return fmt.Errorf("top n must not be negative, got %d", topN)
	}
	return nil
}

// RoundMoney rounds an amount to cents.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Average is total / n rounded to cents; zero when n is zero. Both engines
// derive average order values this way from the rounded total.
func Average(total decimal.Decimal, n int64) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.DivRound(decimal.NewFromInt(n), 2)
}
