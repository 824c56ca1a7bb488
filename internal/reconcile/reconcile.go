// Package reconcile compares the KPI tables of the two engines.
package reconcile

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/shopspring/decimal"
)

// ErrMissingKPI is returned when either side lacks one of the KPI tables.
var ErrMissingKPI = errors.New("kpi table missing")

// Mode selects how strictly tables are compared.
type Mode string

// Modes.
const (
	// ModeRowCount compares row counts only.
	ModeRowCount Mode = "rowcount"
	// ModeContent also aligns rows on the natural key and compares every
	// cell and the row order.
	ModeContent Mode = "content"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeRowCount, ModeContent:
		return m, nil
	case "":
		return ModeContent, nil
	default:
		return "", fmt.Errorf("unknown reconcile mode %q (want %s or %s)", s, ModeRowCount, ModeContent)
	}
}

// Status is the verdict for one KPI.
type Status string

// Statuses.
const (
	StatusMatch    Status = "MATCH"
	StatusMismatch Status = "MISMATCH"
)

// DefaultTolerance is the largest accepted difference between money values.
var DefaultTolerance = decimal.New(1, -2)

// Options configure a comparison.
type Options struct {
	Mode      Mode
	Tolerance decimal.Decimal
}

// DefaultOptions compares content with a one cent tolerance.
func DefaultOptions() Options {
	return Options{Mode: ModeContent, Tolerance: DefaultTolerance}
}

// Difference is one divergence between the two sides.
// Column is empty for row-level differences (count, presence, order).
type Difference struct {
	KPI        core.KPIName
	Key        string
	Column     string
	Relational string
	InMemory   string
}

func (d Difference) String() string {
	where := d.Key
	if d.Column != "" {
		where += "." + d.Column
	}
	return fmt.Sprintf("%s[%s]: relational=%q in-memory=%q", d.KPI, where, d.Relational, d.InMemory)
}

// SummaryRow is the verdict for one KPI.
type SummaryRow struct {
	KPI            core.KPIName
	RelationalRows int
	InMemoryRows   int
	Status         Status
	Differences    []Difference
}

// Summary is the outcome of a comparison, one row per KPI in report order.
type Summary struct {
	Rows     []SummaryRow
	AllMatch bool
}

// Mismatched returns the KPIs whose status is MISMATCH.
func (s *Summary) Mismatched() []core.KPIName {
	var out []core.KPIName
	for _, r := range s.Rows {
		if r.Status == StatusMismatch {
			out = append(out, r.KPI)
		}
	}
	return out
}

// Table renders the summary as a report table.
func (s *Summary) Table() *core.Table {
	t := &core.Table{
		Name:    "comparison_summary",
		Columns: []string{"kpi", "relational_rows", "in_memory_rows", "status", "differences"},
		Key:     []string{"kpi"},
	}
	for _, r := range s.Rows {
		t.Rows = append(t.Rows, []any{
			r.KPI.Title(),
			int64(r.RelationalRows),
			int64(r.InMemoryRows),
			string(r.Status),
			int64(len(r.Differences)),
		})
	}
	return t
}

// Compare reconciles two KPI table sets. A mismatch is reported in the
// summary, not as an error.
func Compare(relational, inMemory map[core.KPIName]*core.Table, opts Options) (*Summary, error) {
	if opts.Mode == "" {
		opts.Mode = ModeContent
	}
	if opts.Tolerance.IsNegative() {
		return nil, fmt.Errorf("tolerance must not be negative, got %s", opts.Tolerance)
	}

	sum := &Summary{AllMatch: true}
	for _, name := range core.AllKPIs {
		rel, ok := relational[name]
		if !ok || rel == nil {
			return nil, fmt.Errorf("relational %s: %w", name, ErrMissingKPI)
		}
		mem, ok := inMemory[name]
		if !ok || mem == nil {
			return nil, fmt.Errorf("in-memory %s: %w", name, ErrMissingKPI)
		}

		row := SummaryRow{KPI: name, RelationalRows: rel.Len(), InMemoryRows: mem.Len()}
		if row.RelationalRows != row.InMemoryRows {
			row.Differences = append(row.Differences, Difference{
				KPI:        name,
				Key:        "row_count",
				Relational: fmt.Sprint(row.RelationalRows),
				InMemory:   fmt.Sprint(row.InMemoryRows),
			})
		}
		if opts.Mode == ModeContent {
			row.Differences = append(row.Differences, compareContent(name, rel, mem, opts.Tolerance)...)
		}

		row.Status = StatusMatch
		if len(row.Differences) > 0 {
			row.Status = StatusMismatch
			sum.AllMatch = false
		}
		sum.Rows = append(sum.Rows, row)
	}
	return sum, nil
}

func compareContent(name core.KPIName, rel, mem *core.Table, tol decimal.Decimal) []Difference {
	var diffs []Difference

	if !slices.Equal(rel.Columns, mem.Columns) {
		return append(diffs, Difference{
			KPI:        name,
			Key:        "columns",
			Relational: strings.Join(rel.Columns, ","),
			InMemory:   strings.Join(mem.Columns, ","),
		})
	}

	relCount := keyCounts(rel)
	memCount := keyCounts(mem)
	for _, t := range []*core.Table{rel, mem} {
		for _, r := range t.Rows {
			key := t.RowKey(r)
			if relCount[key] <= 1 && memCount[key] <= 1 {
				continue
			}
			diffs = append(diffs, Difference{
				KPI:        name,
				Key:        key,
				Column:     "rows",
				Relational: fmt.Sprint(relCount[key]),
				InMemory:   fmt.Sprint(memCount[key]),
			})
			relCount[key], memCount[key] = 0, 0
		}
	}

	memByKey := make(map[string][]any, mem.Len())
	for _, r := range mem.Rows {
		key := mem.RowKey(r)
		if _, ok := memByKey[key]; !ok {
			memByKey[key] = r
		}
	}
	relKeys := make(map[string]bool, rel.Len())

	for _, r := range rel.Rows {
		key := rel.RowKey(r)
		relKeys[key] = true
		other, ok := memByKey[key]
		if !ok {
			diffs = append(diffs, Difference{KPI: name, Key: key, Relational: "present", InMemory: "missing"})
			continue
		}
		for i, col := range rel.Columns {
			if !equalValues(r[i], other[i], tol) {
				diffs = append(diffs, Difference{
					KPI:        name,
					Key:        key,
					Column:     col,
					Relational: core.FormatValue(r[i]),
					InMemory:   core.FormatValue(other[i]),
				})
			}
		}
	}
	for _, r := range mem.Rows {
		if key := mem.RowKey(r); !relKeys[key] {
			diffs = append(diffs, Difference{KPI: name, Key: key, Relational: "missing", InMemory: "present"})
		}
	}

	// Same rows must also come out in the same order.
	if len(diffs) == 0 {
		for i := range rel.Rows {
			rk, mk := rel.RowKey(rel.Rows[i]), mem.RowKey(mem.Rows[i])
			if rk != mk {
				diffs = append(diffs, Difference{
					KPI:        name,
					Key:        fmt.Sprintf("position %d", i+1),
					Relational: rk,
					InMemory:   mk,
				})
				break
			}
		}
	}
	return diffs
}

// keyCounts counts the rows of t per natural key.
func keyCounts(t *core.Table) map[string]int {
	counts := make(map[string]int, t.Len())
	for _, r := range t.Rows {
		counts[t.RowKey(r)]++
	}
	return counts
}

// equalValues compares two cells. Money compares within tol and timestamps
// compare as instants.
func equalValues(a, b any, tol decimal.Decimal) bool {
	switch av := a.(type) {
	case decimal.Decimal:
		bv, ok := b.(decimal.Decimal)
		return ok && av.Sub(bv).Abs().LessThanOrEqual(tol)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	default:
		return a == b
	}
}
