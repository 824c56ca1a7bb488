// Package dialect provides the MySQL SQL dialect definition.
package dialect

import (
	"github.com/leapstack-labs/leapkpi/pkg/dialect"
)

func init() {
	dialect.Register(MySQL)
}

// MySQL is the MySQL dialect configuration. Text columns use the binary
// no-pad utf8mb4 collation (MySQL 8.0.17 or later) so grouping and ordering
// compare code points.
var MySQL = dialect.NewDialect("mysql").
	DefaultSchema("").
	Placeholders(dialect.PlaceholderQuestion).
	Types("VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_0900_bin", "DECIMAL(14,2)", "BIGINT", "DATETIME(6)").
	MonthFormat("DATE_FORMAT(%s, '%%Y-%%m')").
	InlineIndexes().
	Build()
