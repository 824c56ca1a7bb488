// Package dialect provides the SQLite SQL dialect definition.
package dialect

import (
	"github.com/leapstack-labs/leapkpi/pkg/dialect"
)

func init() {
	dialect.Register(SQLite)
}

// SQLite is the SQLite dialect configuration.
// Timestamps are stored as fixed-width text so strftime and range
// comparisons work on them directly.
var SQLite = dialect.NewDialect("sqlite").
	DefaultSchema("main").
	Placeholders(dialect.PlaceholderQuestion).
	Types("TEXT", "REAL", "INTEGER", "TEXT").
	MonthFormat("strftime('%%Y-%%m', %s)").
	TimeAsText().
	MoneyAsFloat().
	Build()
