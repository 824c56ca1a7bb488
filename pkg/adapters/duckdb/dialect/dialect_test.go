package dialect_test

import (
	"testing"

	duckdbDialect "github.com/leapstack-labs/leapkpi/pkg/adapters/duckdb/dialect"
	mysqlDialect "github.com/leapstack-labs/leapkpi/pkg/adapters/mysql/dialect"
	postgresDialect "github.com/leapstack-labs/leapkpi/pkg/adapters/postgres/dialect"
	sqliteDialect "github.com/leapstack-labs/leapkpi/pkg/adapters/sqlite/dialect"
	"github.com/leapstack-labs/leapkpi/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthExpressions(t *testing.T) {
	tests := []struct {
		d    *dialect.Dialect
		want string
	}{
		{duckdbDialect.DuckDB, "strftime(o.order_date_time, '%Y-%m')"},
		{sqliteDialect.SQLite, "strftime('%Y-%m', o.order_date_time)"},
		{postgresDialect.Postgres, "to_char(o.order_date_time, 'YYYY-MM')"},
		{mysqlDialect.MySQL, "DATE_FORMAT(o.order_date_time, '%Y-%m')"},
	}

	for _, tt := range tests {
		t.Run(tt.d.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Month("o.order_date_time"))

			registered, ok := dialect.Get(tt.d.Name)
			require.True(t, ok, "dialect %s should self-register", tt.d.Name)
			assert.Same(t, tt.d, registered)
		})
	}
}

func TestTextTypesCompareBytes(t *testing.T) {
	tests := []struct {
		d    *dialect.Dialect
		want string
	}{
		{duckdbDialect.DuckDB, "VARCHAR"},
		{sqliteDialect.SQLite, "TEXT"},
		{postgresDialect.Postgres, `VARCHAR(255) COLLATE "C"`},
		{mysqlDialect.MySQL, "VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_0900_bin"},
	}

	for _, tt := range tests {
		t.Run(tt.d.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.TextType)
		})
	}
}
