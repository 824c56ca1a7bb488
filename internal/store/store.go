// Package store owns the relational copy of a run's input: the customers,
// orders and order_items tables, their schema, and the idempotent merge that
// loads a dataset into them.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/leapkpi/pkg/adapter"
	"github.com/leapstack-labs/leapkpi/pkg/dialect"
)

// Table names.
const (
	TableCustomers  = "customers"
	TableOrders     = "orders"
	TableOrderItems = "order_items"
)

// Store issues DDL and DML through an adapter.
type Store struct {
	adp    adapter.Adapter
	loc    *time.Location
	logger *slog.Logger
}

// New creates a store over a connected adapter. Order times are written as
// UTC wall clocks, with a second column holding the wall clock in loc for
// month bucketing. If logger is nil, a discard logger is used.
func New(adp adapter.Adapter, loc *time.Location, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Store{adp: adp, loc: loc, logger: logger}
}

// Counts holds row counts per table.
type Counts struct {
	Customers  int64
	Orders     int64
	OrderItems int64
}

type index struct {
	name    string
	columns string
	unique  bool
}

type tableDef struct {
	name    string
	columns func(d *dialect.Dialect) []string
	indexes []index
}

var schema = []tableDef{
	{
		name: TableCustomers,
		columns: func(d *dialect.Dialect) []string {
			return []string{
				"customer_id " + d.TextType + " PRIMARY KEY",
				"customer_name " + d.TextType,
				"mobile_number " + d.TextType + " NOT NULL",
				"region " + d.TextType,
			}
		},
		indexes: []index{{name: "idx_customers_mobile_number", columns: "mobile_number", unique: true}},
	},
	{
		name: TableOrders,
		columns: func(d *dialect.Dialect) []string {
			return []string{
				"order_id " + d.TextType + " PRIMARY KEY",
				"mobile_number " + d.TextType + " NOT NULL",
				"order_date_time " + d.TimestampType + " NOT NULL",
				"order_local_time " + d.TimestampType + " NOT NULL",
				"total_amount " + d.MoneyType,
			}
		},
		indexes: []index{
			{name: "idx_orders_mobile_number", columns: "mobile_number"},
			{name: "idx_orders_order_date_time", columns: "order_date_time"},
		},
	},
	{
		name: TableOrderItems,
		columns: func(d *dialect.Dialect) []string {
			return []string{
				"order_id " + d.TextType + " NOT NULL",
				"line_no " + d.IntegerType + " NOT NULL",
				"sku_id " + d.TextType,
				"sku_count " + d.IntegerType,
				"PRIMARY KEY (order_id, line_no)",
			}
		},
	},
}

// schemaStatements renders the DDL for a dialect.
func schemaStatements(d *dialect.Dialect) []string {
	var stmts []string
	for _, t := range schema {
		cols := t.columns(d)
		indexes := t.indexes
		if d.SkipSecondaryIndexes {
			indexes = nil
		}
		if d.InlineIndexes {
			for _, idx := range indexes {
				kind := "INDEX"
				if idx.unique {
					kind = "UNIQUE INDEX"
				}
				cols = append(cols, fmt.Sprintf("%s %s (%s)", kind, idx.name, idx.columns))
			}
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.name, strings.Join(cols, ",\n\t")))

		if d.InlineIndexes {
			continue
		}
		for _, idx := range indexes {
			kind := "INDEX"
			if idx.unique {
				kind = "UNIQUE INDEX"
			}
			stmts = append(stmts, fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)", kind, idx.name, t.name, idx.columns))
		}
	}
	return stmts
}

// EnsureSchema creates the tables and indexes when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.adp.Dialect()) {
		if err := s.adp.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	s.logger.Debug("schema ensured", slog.String("dialect", s.adp.Dialect().Name))
	return nil
}

// Counts returns the number of rows in each table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, tc := range []struct {
		table string
		dst   *int64
	}{
		{TableCustomers, &c.Customers},
		{TableOrders, &c.Orders},
		{TableOrderItems, &c.OrderItems},
	} {
		n, err := s.count(ctx, tc.table)
		if err != nil {
			return Counts{}, err
		}
		*tc.dst = n
	}
	return c, nil
}

func (s *Store) count(ctx context.Context, table string) (int64, error) {
	rows, err := s.adp.Query(ctx, "SELECT COUNT(*) FROM "+table)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Truncate removes all rows from the three tables.
func (s *Store) Truncate(ctx context.Context) error {
	for _, table := range []string{TableOrderItems, TableOrders, TableCustomers} {
		if err := s.adp.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	s.logger.Info("store truncated")
	return nil
}
