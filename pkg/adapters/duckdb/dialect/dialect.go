// Package dialect provides the DuckDB SQL dialect definition.
// This package has no database driver dependencies.
package dialect

import (
	"github.com/leapstack-labs/leapkpi/pkg/dialect"
)

func init() {
	dialect.Register(DuckDB)
}

// DuckDB is the DuckDB dialect configuration.
// DuckDB DECIMAL values scan as a driver-specific type, so money is DOUBLE.
// Only primary keys are indexed.
var DuckDB = dialect.NewDialect("duckdb").
	DefaultSchema("main").
	Placeholders(dialect.PlaceholderQuestion).
	Types("VARCHAR", "DOUBLE", "BIGINT", "TIMESTAMP").
	MonthFormat("strftime(%s, '%%Y-%%m')").
	MoneyAsFloat().
	SkipSecondaryIndexes().
	Build()
