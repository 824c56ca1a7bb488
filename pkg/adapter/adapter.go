// Package adapter provides the database adapter contract used by the
// relational store and the relational KPI engine.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves from init().
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/leapstack-labs/leapkpi/pkg/dialect"
)

// Config is an alias for core.AdapterConfig.
type Config = core.AdapterConfig

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Ping verifies the connection is still alive.
	Ping(ctx context.Context) error

	// Exec executes a statement that doesn't return rows. Parameters use ?
	// and are rebound to the dialect's placeholder style.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query executes a statement that returns rows. The caller closes the rows
	// and checks rows.Err().
	Query(ctx context.Context, sql string, args ...any) (*sql.Rows, error)

	// BeginTx starts a transaction on the underlying connection.
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Dialect returns the SQL dialect configuration for this adapter.
	Dialect() *dialect.Dialect
}
