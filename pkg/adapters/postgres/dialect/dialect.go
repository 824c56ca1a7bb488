// Package dialect provides the PostgreSQL SQL dialect definition.
package dialect

import (
	"github.com/leapstack-labs/leapkpi/pkg/dialect"
)

func init() {
	dialect.Register(Postgres)
}

// Postgres is the PostgreSQL dialect configuration. Text columns use the "C"
// collation so grouping and ordering compare bytes.
var Postgres = dialect.NewDialect("postgres").
	DefaultSchema("public").
	Placeholders(dialect.PlaceholderDollar).
	Types(`VARCHAR(255) COLLATE "C"`, "NUMERIC(14,2)", "BIGINT", "TIMESTAMP").
	MonthFormat("to_char(%s, 'YYYY-MM')").
	Build()
