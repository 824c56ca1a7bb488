// Package sqlite provides a SQLite store adapter backed by the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapkpi/pkg/adapter"
	sqliteDialect "github.com/leapstack-labs/leapkpi/pkg/adapters/sqlite/dialect"
	"github.com/leapstack-labs/leapkpi/pkg/dialect"

	_ "modernc.org/sqlite" // sqlite driver
)

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, SQLDialect: sqliteDialect.SQLite},
	}
}

// Dialect returns the SQLite dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return sqliteDialect.SQLite
}

// Connect opens the database file, or a private in-memory database for
// ":memory:" or an empty path.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to sqlite", slog.String("path", path))

	db, err := adapter.Open(ctx, "sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return err
	}
	// Every pooled connection to :memory: would see its own database.
	db.SetMaxOpenConns(1)

	a.DB = db
	a.Cfg = cfg
	return nil
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
