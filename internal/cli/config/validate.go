package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/leapkpi/internal/kpi"
	"github.com/leapstack-labs/leapkpi/internal/pipeline"
	"github.com/leapstack-labs/leapkpi/internal/reconcile"
	"github.com/leapstack-labs/leapkpi/internal/report"
	"github.com/leapstack-labs/leapkpi/pkg/adapter"
	"github.com/shopspring/decimal"
)

// Validate checks the configuration without touching any file or database.
func (c *Config) Validate() error {
	var errs []error

	if err := ValidateTarget(c.Target); err != nil {
		errs = append(errs, fmt.Errorf("invalid target configuration: %w", err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
	}
	if c.TopN <= 0 {
		errs = append(errs, fmt.Errorf("top_n must be positive, got %d", c.TopN))
	}
	if c.WindowDays <= 0 {
		errs = append(errs, fmt.Errorf("window_days must be positive, got %d", c.WindowDays))
	}
	if _, err := reconcile.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.tolerance(); err != nil {
		errs = append(errs, err)
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.queryTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateTarget checks that the target names a registered adapter.
func ValidateTarget(t *TargetConfig) error {
	if t == nil || t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{Type: t.Type, Available: adapter.ListAdapters()}
	}
	return nil
}

func (c *Config) tolerance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.Tolerance))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid tolerance %q", c.Tolerance)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("tolerance must not be negative, got %s", d)
	}
	return d, nil
}

func (c *Config) queryTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.QueryTimeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid query_timeout %q", c.QueryTimeout)
	}
	return d, nil
}

// ParseLogLevel maps a level name to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return l, nil
}

// Params returns the KPI parameters evaluated at now.
func (c *Config) Params(now time.Time) (kpi.Params, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return kpi.Params{}, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return kpi.Params{
		Location: loc,
		Window:   time.Duration(c.WindowDays) * 24 * time.Hour,
		TopN:     c.TopN,
		Now:      now,
	}, nil
}

// PipelineConfig converts the configuration into pipeline inputs.
func (c *Config) PipelineConfig(now time.Time) (pipeline.Config, error) {
	params, err := c.Params(now)
	if err != nil {
		return pipeline.Config{}, err
	}
	mode, err := reconcile.ParseMode(c.Mode)
	if err != nil {
		return pipeline.Config{}, err
	}
	tol, err := c.tolerance()
	if err != nil {
		return pipeline.Config{}, err
	}
	format, err := report.ParseFormat(c.Format)
	if err != nil {
		return pipeline.Config{}, err
	}
	timeout, err := c.queryTimeout()
	if err != nil {
		return pipeline.Config{}, err
	}

	return pipeline.Config{
		CustomersPath: c.CustomersPath,
		OrdersPath:    c.OrdersPath,
		OutputDir:     c.OutputDir,
		Format:        format,
		Target:        *c.Target,
		Params:        params,
		Compare:       reconcile.Options{Mode: mode, Tolerance: tol},
		QueryTimeout:  timeout,
	}, nil
}
