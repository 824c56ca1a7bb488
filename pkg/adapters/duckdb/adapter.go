// Package duckdb provides a DuckDB store adapter.
package duckdb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapkpi/pkg/adapter"
	duckdbDialect "github.com/leapstack-labs/leapkpi/pkg/adapters/duckdb/dialect"
	"github.com/leapstack-labs/leapkpi/pkg/dialect"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
	params *Params
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, SQLDialect: duckdbDialect.DuckDB},
	}
}

// Dialect returns the DuckDB dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return duckdbDialect.DuckDB
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := parseParams(cfg.Params)
	if err != nil {
		return fmt.Errorf("invalid duckdb params: %w", err)
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := adapter.Open(ctx, "duckdb", path)
	if err != nil {
		return err
	}
	// An in-memory database lives inside one connection.
	db.SetMaxOpenConns(1)

	a.DB = db
	a.Cfg = cfg
	a.params = params

	if err := a.setup(ctx); err != nil {
		_ = a.Close()
		return err
	}
	return nil
}

// setup loads extensions, applies settings and creates secrets.
func (a *Adapter) setup(ctx context.Context) error {
	for _, ext := range a.params.Extensions {
		if err := a.Exec(ctx, "INSTALL "+ext); err != nil {
			return fmt.Errorf("failed to install extension %s: %w", ext, err)
		}
		if err := a.Exec(ctx, "LOAD "+ext); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}

	keys := make([]string, 0, len(a.params.Settings))
	for k := range a.params.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmt := fmt.Sprintf("SET %s = '%s'", k, strings.ReplaceAll(a.params.Settings[k], "'", "''"))
		if err := a.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}

	for i, s := range a.params.Secrets {
		if err := a.Exec(ctx, buildSecretSQL(fmt.Sprintf("leapkpi_secret_%d", i), s)); err != nil {
			return fmt.Errorf("failed to create %s secret: %w", s.Type, err)
		}
	}
	return nil
}

func buildSecretSQL(name string, s SecretConfig) string {
	quote := func(v string) string { return "'" + strings.ReplaceAll(v, "'", "''") + "'" }

	parts := []string{"TYPE " + s.Type}
	if s.Provider != "" {
		parts = append(parts, "PROVIDER "+s.Provider)
	}
	if s.Region != "" {
		parts = append(parts, "REGION "+quote(s.Region))
	}
	if s.KeyID != "" {
		parts = append(parts, "KEY_ID "+quote(s.KeyID))
	}
	if s.Secret != "" {
		parts = append(parts, "SECRET "+quote(s.Secret))
	}
	if s.Endpoint != "" {
		parts = append(parts, "ENDPOINT "+quote(s.Endpoint))
	}
	if s.URLStyle != "" {
		parts = append(parts, "URL_STYLE "+quote(s.URLStyle))
	}
	if s.UseSSL != nil {
		parts = append(parts, fmt.Sprintf("USE_SSL %t", *s.UseSSL))
	}
	switch scope := s.Scope.(type) {
	case string:
		parts = append(parts, "SCOPE "+quote(scope))
	case []any:
		for _, sc := range scope {
			parts = append(parts, "SCOPE "+quote(fmt.Sprint(sc)))
		}
	}
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (%s)", name, strings.Join(parts, ", "))
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
