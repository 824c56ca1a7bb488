package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSet() *core.KPISet {
	loc := time.FixedZone("IST", 5*3600+1800)
	return &core.KPISet{
		RepeatCustomers: []core.RepeatCustomer{
			{CustomerID: "C1", CustomerName: "Asha", MobileNumber: "9000000001", Region: "North", OrderCount: 3, TotalSpent: decimal.RequireFromString("425.75")},
		},
		MonthlyTrends: []core.MonthlyTrend{
			{Month: "2024-06", OrderCount: 3, TotalItems: 6, TotalRevenue: decimal.RequireFromString("650.50"), AvgOrderValue: decimal.RequireFromString("216.83"), UniqueCustomers: 2},
			{Month: "2024-05", OrderCount: 1, TotalItems: 1, TotalRevenue: decimal.RequireFromString("75.25"), AvgOrderValue: decimal.RequireFromString("75.25"), UniqueCustomers: 1},
		},
		RegionalRevenue: []core.RegionalRevenue{
			{Region: "North", CustomerCount: 1, OrderCount: 3, TotalRevenue: decimal.RequireFromString("425.75")},
		},
		TopCustomers: []core.TopCustomer{
			{CustomerID: "C1", OrderCount: 2, TotalSpent: decimal.RequireFromString("350.50"), LastOrderDate: time.Date(2024, 6, 10, 12, 0, 0, 0, loc)},
			{CustomerID: "C2", OrderCount: 1, TotalSpent: decimal.RequireFromString("300.00"), LastOrderDate: time.Date(2024, 6, 10, 12, 0, 0, 0, loc)},
		},
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name      string
		mode      Mode
		mutate    func(s *core.KPISet)
		allMatch  bool
		mismatch  []core.KPIName
		diffCheck func(t *testing.T, d []Difference)
	}{
		{
			name:     "identical sets match",
			mode:     ModeContent,
			mutate:   func(*core.KPISet) {},
			allMatch: true,
		},
		{
			name: "money within tolerance matches",
			mode: ModeContent,
			mutate: func(s *core.KPISet) {
				s.RepeatCustomers[0].TotalSpent = decimal.RequireFromString("425.76")
			},
			allMatch: true,
		},
		{
			name: "same instant in another zone matches",
			mode: ModeContent,
			mutate: func(s *core.KPISet) {
				s.TopCustomers[0].LastOrderDate = s.TopCustomers[0].LastOrderDate.UTC()
			},
			allMatch: true,
		},
		{
			name: "value difference",
			mode: ModeContent,
			mutate: func(s *core.KPISet) {
				s.MonthlyTrends[0].TotalItems = 7
			},
			mismatch: []core.KPIName{core.KPIMonthlyTrends},
			diffCheck: func(t *testing.T, d []Difference) {
				require.Len(t, d, 1)
				assert.Equal(t, "2024-06", d[0].Key)
				assert.Equal(t, "total_items", d[0].Column)
				assert.Equal(t, "6", d[0].Relational)
				assert.Equal(t, "7", d[0].InMemory)
			},
		},
		{
			name: "value difference ignored in row count mode",
			mode: ModeRowCount,
			mutate: func(s *core.KPISet) {
				s.MonthlyTrends[0].TotalItems = 7
			},
			allMatch: true,
		},
		{
			name: "order difference",
			mode: ModeContent,
			mutate: func(s *core.KPISet) {
				s.TopCustomers[0], s.TopCustomers[1] = s.TopCustomers[1], s.TopCustomers[0]
			},
			mismatch: []core.KPIName{core.KPITopCustomers},
			diffCheck: func(t *testing.T, d []Difference) {
				require.Len(t, d, 1)
				assert.Equal(t, "position 1", d[0].Key)
				assert.Equal(t, "C1", d[0].Relational)
				assert.Equal(t, "C2", d[0].InMemory)
			},
		},
		{
			name: "row count difference",
			mode: ModeRowCount,
			mutate: func(s *core.KPISet) {
				s.RepeatCustomers = nil
			},
			mismatch: []core.KPIName{core.KPIRepeatCustomers},
		},
		{
			name: "missing row in content mode",
			mode: ModeContent,
			mutate: func(s *core.KPISet) {
				s.RepeatCustomers[0].CustomerID = "C9"
			},
			mismatch: []core.KPIName{core.KPIRepeatCustomers},
			diffCheck: func(t *testing.T, d []Difference) {
				require.Len(t, d, 2)
				assert.Equal(t, "missing", d[0].InMemory)
				assert.Equal(t, "missing", d[1].Relational)
			},
		},
		{
			name: "repeated key in content mode",
			mode: ModeContent,
			mutate: func(s *core.KPISet) {
				s.TopCustomers[0] = s.TopCustomers[1]
			},
			mismatch: []core.KPIName{core.KPITopCustomers},
			diffCheck: func(t *testing.T, d []Difference) {
				require.NotEmpty(t, d)
				assert.Equal(t, Difference{KPI: core.KPITopCustomers, Key: "C2", Column: "rows", Relational: "1", InMemory: "2"}, d[0])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel := sampleSet()
			mem := sampleSet()
			tt.mutate(mem)

			sum, err := Compare(rel.Tables(), mem.Tables(), Options{Mode: tt.mode, Tolerance: DefaultTolerance})
			require.NoError(t, err)
			require.Len(t, sum.Rows, len(core.AllKPIs))

			assert.Equal(t, tt.allMatch, sum.AllMatch)
			assert.Equal(t, tt.mismatch, sum.Mismatched())

			if tt.diffCheck != nil {
				for _, r := range sum.Rows {
					if r.Status == StatusMismatch {
						tt.diffCheck(t, r.Differences)
					}
				}
			}
		})
	}
}

func TestCompareContent_RepeatedKeysOnBothSides(t *testing.T) {
	table := func(rows ...[]any) *core.Table {
		return &core.Table{Name: "top", Columns: []string{"customer_id", "order_count"}, Key: []string{"customer_id"}, Rows: rows}
	}
	rel := table([]any{"C1", int64(2)}, []any{"C1", int64(2)})
	mem := table([]any{"C1", int64(1)}, []any{"C1", int64(2)})

	d := compareContent(core.KPITopCustomers, rel, mem, DefaultTolerance)
	require.NotEmpty(t, d)
	assert.Equal(t, "C1", d[0].Key)
	assert.Equal(t, "rows", d[0].Column)
	assert.Equal(t, "2", d[0].Relational)
	assert.Equal(t, "2", d[0].InMemory)

	same := compareContent(core.KPITopCustomers, rel, table([]any{"C1", int64(2)}, []any{"C1", int64(2)}), DefaultTolerance)
	assert.Len(t, same, 1, "a key repeated on both sides is reported even when rows agree")
}

func TestCompare_MissingKPI(t *testing.T) {
	rel := sampleSet().Tables()
	mem := sampleSet().Tables()
	delete(mem, core.KPIRegionalRevenue)

	_, err := Compare(rel, mem, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingKPI))
	assert.Contains(t, err.Error(), "in-memory regional_revenue")
}

func TestCompare_NegativeTolerance(t *testing.T) {
	_, err := Compare(sampleSet().Tables(), sampleSet().Tables(), Options{Tolerance: decimal.NewFromInt(-1)})
	assert.Error(t, err)
}

func TestSummaryTable(t *testing.T) {
	sum, err := Compare(sampleSet().Tables(), sampleSet().Tables(), DefaultOptions())
	require.NoError(t, err)

	tbl := sum.Table()
	require.Equal(t, 4, tbl.Len())
	assert.Equal(t, []any{"Repeat Customers", int64(1), int64(1), "MATCH", int64(0)}, tbl.Rows[0])
	assert.Equal(t, "Top Customers 30D", tbl.Rows[3][0])
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"content", ModeContent, false},
		{"RowCount", ModeRowCount, false},
		{"", ModeContent, false},
		{"fuzzy", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
