// Package dialect provides the SQL dialect settings the relational store and
// the relational KPI engine need: placeholder style, column types, the month
// key expression and how timestamps travel to and from the driver.
package dialect

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PlaceholderStyle is how a driver spells query parameters.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for every parameter (SQLite, DuckDB, MySQL).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, ... (PostgreSQL).
	PlaceholderDollar
)

// TimeEncoding is how timestamps are bound and stored.
type TimeEncoding int

const (
	// TimeNative binds time.Time values to a TIMESTAMP column.
	TimeNative TimeEncoding = iota
	// TimeText stores fixed-width ISO text so lexical order is chronological.
	TimeText
)

// TextTimeLayout is the fixed-width layout used by TimeText dialects.
const TextTimeLayout = "2006-01-02 15:04:05.000000"

// Dialect describes one SQL flavor.
//
// Timestamps are stored as naive wall-clock values of the business zone. All
// comparisons and month keys evaluated by the store therefore agree with the
// same computation done in Go after converting to that zone.
type Dialect struct {
	Name          string
	DefaultSchema string
	Placeholder   PlaceholderStyle
	TimeEncoding  TimeEncoding

	// Column types
	TextType      string
	MoneyType     string
	IntegerType   string
	TimestampType string

	// MoneyAsFloat binds money as float64 for REAL/DOUBLE columns.
	MoneyAsFloat bool

	// InlineIndexes declares secondary indexes inside CREATE TABLE because the
	// engine has no CREATE INDEX IF NOT EXISTS.
	InlineIndexes bool

	// SkipSecondaryIndexes leaves only primary keys. DuckDB rewrites updates of
	// indexed columns into delete and insert, which trips unique checks inside
	// one transaction.
	SkipSecondaryIndexes bool

	// monthFormat has a single %s for the timestamp expression and yields 'YYYY-MM'
	monthFormat string
}

// FormatPlaceholder returns the n-th (1-based) placeholder.
func (d *Dialect) FormatPlaceholder(n int) string {
	if d.Placeholder == PlaceholderDollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Rebind rewrites ? placeholders into the dialect's style.
// Question marks inside single-quoted literals are left alone.
func (d *Dialect) Rebind(query string) string {
	if d.Placeholder == PlaceholderQuestion {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteString(d.FormatPlaceholder(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Month returns an expression yielding the 'YYYY-MM' key of a timestamp column.
func (d *Dialect) Month(expr string) string {
	return fmt.Sprintf(d.monthFormat, expr)
}

// EncodeTime converts t into the value bound for a timestamp column: the wall
// clock of t in loc, without zone.
func (d *Dialect) EncodeTime(t time.Time, loc *time.Location) any {
	wall := t.In(loc)
	naive := time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), time.UTC)
	if d.TimeEncoding == TimeText {
		return naive.Format(TextTimeLayout)
	}
	return naive
}

// EncodeMoney converts an amount into the value bound for a money column.
func (d *Dialect) EncodeMoney(v decimal.Decimal) any {
	if d.MoneyAsFloat {
		return v.InexactFloat64()
	}
	return v.String()
}

// DecodeTime interprets a scanned timestamp as a wall clock in loc.
func (d *Dialect) DecodeTime(v any, loc *time.Location) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return time.Date(val.Year(), val.Month(), val.Day(), val.Hour(), val.Minute(), val.Second(), val.Nanosecond(), loc), nil
	case string:
		return parseTextTime(val, loc)
	case []byte:
		return parseTextTime(string(val), loc)
	case nil:
		return time.Time{}, fmt.Errorf("%s: null timestamp", d.Name)
	default:
		return time.Time{}, fmt.Errorf("%s: unsupported timestamp value %T", d.Name, v)
	}
}

var textTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTextTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range textTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

// Builder assembles a Dialect.
type Builder struct {
	d Dialect
}

// NewDialect starts a dialect definition with ANSI-ish defaults.
func NewDialect(name string) *Builder {
	return &Builder{d: Dialect{
		Name:          name,
		DefaultSchema: "main",
		TextType:      "VARCHAR(255)",
		MoneyType:     "DECIMAL(14,2)",
		IntegerType:   "BIGINT",
		TimestampType: "TIMESTAMP",
		monthFormat:   "strftime(%s, '%%Y-%%m')",
	}}
}

// DefaultSchema sets the schema used when none is configured.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.d.DefaultSchema = schema
	return b
}

// Placeholders sets the parameter style.
func (b *Builder) Placeholders(style PlaceholderStyle) *Builder {
	b.d.Placeholder = style
	return b
}

// Types sets the text, money, integer and timestamp column types.
func (b *Builder) Types(text, money, integer, timestamp string) *Builder {
	b.d.TextType = text
	b.d.MoneyType = money
	b.d.IntegerType = integer
	b.d.TimestampType = timestamp
	return b
}

// MonthFormat sets the month key expression; it must contain one %s.
func (b *Builder) MonthFormat(format string) *Builder {
	b.d.monthFormat = format
	return b
}

// TimeAsText stores timestamps as fixed-width text.
func (b *Builder) TimeAsText() *Builder {
	b.d.TimeEncoding = TimeText
	return b
}

// MoneyAsFloat binds amounts as float64.
func (b *Builder) MoneyAsFloat() *Builder {
	b.d.MoneyAsFloat = true
	return b
}

// InlineIndexes declares secondary indexes inside CREATE TABLE.
func (b *Builder) InlineIndexes() *Builder {
	b.d.InlineIndexes = true
	return b
}

// SkipSecondaryIndexes creates primary keys only.
func (b *Builder) SkipSecondaryIndexes() *Builder {
	b.d.SkipSecondaryIndexes = true
	return b
}

// Build returns the finished dialect.
func (b *Builder) Build() *Dialect {
	d := b.d
	return &d
}
