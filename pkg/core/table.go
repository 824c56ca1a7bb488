package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Table is a named, column-ordered result set.
//
// Cell values are one of string, int64, decimal.Decimal or time.Time. Key lists
// the natural key columns used to align rows of two tables.
type Table struct {
	Name    KPIName
	Columns []string
	Key     []string
	Rows    [][]any
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// RowKey renders the natural key of a row.
func (t *Table) RowKey(row []any) string {
	parts := make([]string, 0, len(t.Key))
	for _, k := range t.Key {
		if i := t.ColumnIndex(k); i >= 0 && i < len(row) {
			parts = append(parts, FormatValue(row[i]))
		}
	}
	return strings.Join(parts, "|")
}

// Naive returns a copy of the table with every timestamp replaced by its
// wall-clock reading in UTC, for sinks that cannot carry zone offsets.
func (t *Table) Naive() *Table {
	out := &Table{Name: t.Name, Columns: t.Columns, Key: t.Key, Rows: make([][]any, len(t.Rows))}
	for i, row := range t.Rows {
		cp := make([]any, len(row))
		for j, v := range row {
			if ts, ok := v.(time.Time); ok {
				v = StripZone(ts)
			}
			cp[j] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// StripZone keeps the wall clock of t and drops its location.
func StripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// TimestampLayout is the textual form of timestamps in reports.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatValue renders a cell for display.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case decimal.Decimal:
		return val.StringFixed(2)
	case time.Time:
		return val.Format(TimestampLayout)
	default:
		return fmt.Sprintf("%v", val)
	}
}
