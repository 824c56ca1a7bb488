// Package kpitest is the contract suite every kpi.Engine must pass.
package kpitest

import (
	"context"
	"testing"
	"time"

	"github.com/leapstack-labs/leapkpi/internal/kpi"
	"github.com/leapstack-labs/leapkpi/internal/testutil"
	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory builds an engine over ds. Params carry the business zone.
type Factory func(t *testing.T, ds *core.Dataset, p kpi.Params) kpi.Engine

// Params returns the parameters used by the suite: Asia/Kolkata, 30 days,
// top 10, evaluated at noon on 2024-06-15.
func Params(t testing.TB) kpi.Params {
	loc := testutil.Kolkata(t)
	return kpi.Params{
		Location: loc,
		Window:   kpi.DefaultWindow,
		TopN:     kpi.DefaultTopN,
		Now:      time.Date(2024, 6, 15, 12, 0, 0, 0, loc),
	}
}

// Run executes the contract suite against the engine built by newEngine.
func Run(t *testing.T, newEngine Factory) {
	t.Run("Scenario", func(t *testing.T) { testScenario(t, newEngine) })
	t.Run("ZeroItemOrder", func(t *testing.T) { testZeroItemOrder(t, newEngine) })
	t.Run("MonthBoundaryInBusinessZone", func(t *testing.T) { testMonthBoundary(t, newEngine) })
	t.Run("TopNLimitAndTieBreak", func(t *testing.T) { testTopNLimit(t, newEngine) })
	t.Run("TieBreaksCompareBytes", func(t *testing.T) { testByteOrderTieBreak(t, newEngine) })
	t.Run("NegativeTopN", func(t *testing.T) { testNegativeTopN(t, newEngine) })
	t.Run("WindowAcrossFallBackHour", func(t *testing.T) { testFallBackWindow(t, newEngine) })
	t.Run("EmptyDataset", func(t *testing.T) { testEmpty(t, newEngine) })
	t.Run("Invariants", func(t *testing.T) { testInvariants(t, newEngine) })
}

func money(s string) decimal.Decimal { return testutil.Money(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, money(want).Equal(got), "want %s got %s %v", want, got.String(), msgAndArgs)
}

func testScenario(t *testing.T, newEngine Factory) {
	ctx := context.Background()
	p := Params(t)
	eng := newEngine(t, testutil.ScenarioDataset(p.Now), p)

	repeat, err := eng.RepeatCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, repeat, 1)
	assert.Equal(t, "C1", repeat[0].CustomerID)
	assert.Equal(t, "Asha", repeat[0].CustomerName)
	assert.Equal(t, "9000000001", repeat[0].MobileNumber)
	assert.Equal(t, "North", repeat[0].Region)
	assert.Equal(t, int64(3), repeat[0].OrderCount)
	assertMoney(t, "425.75", repeat[0].TotalSpent)

	top, err := eng.TopCustomers(ctx, p.Cutoff(), p.TopN)
	require.NoError(t, err)
	require.Len(t, top, 2)

	assert.Equal(t, "C1", top[0].CustomerID)
	assert.Equal(t, int64(2), top[0].OrderCount, "the 40 day old order is outside the window")
	assertMoney(t, "350.50", top[0].TotalSpent)
	assert.True(t, top[0].LastOrderDate.Equal(p.Now.Add(-5*24*time.Hour)))
	assert.True(t, top[0].FirstOrderDate.Equal(p.Now.Add(-10*24*time.Hour)))

	assert.Equal(t, "C2", top[1].CustomerID)
	assert.Equal(t, int64(1), top[1].OrderCount)
	assertMoney(t, "300.00", top[1].TotalSpent)

	monthly, err := eng.MonthlyTrends(ctx)
	require.NoError(t, err)
	require.Len(t, monthly, 2)

	june := monthly[0]
	assert.Equal(t, "2024-06", june.Month)
	assert.Equal(t, int64(3), june.OrderCount)
	assert.Equal(t, int64(6), june.TotalItems)
	assertMoney(t, "650.50", june.TotalRevenue)
	assertMoney(t, "216.83", june.AvgOrderValue)
	assert.Equal(t, int64(2), june.UniqueCustomers)

	may := monthly[1]
	assert.Equal(t, "2024-05", may.Month)
	assert.Equal(t, int64(1), may.OrderCount)
	assert.Equal(t, int64(1), may.TotalItems)
	assertMoney(t, "75.25", may.TotalRevenue)

	regional, err := eng.RegionalRevenue(ctx)
	require.NoError(t, err)
	require.Len(t, regional, 2)

	assert.Equal(t, "North", regional[0].Region)
	assert.Equal(t, int64(1), regional[0].CustomerCount)
	assert.Equal(t, int64(3), regional[0].OrderCount)
	assertMoney(t, "425.75", regional[0].TotalRevenue)
	assertMoney(t, "141.92", regional[0].AvgOrderValue)
	assertMoney(t, "250.50", regional[0].MaxOrderValue)

	assert.Equal(t, "South", regional[1].Region)
	assertMoney(t, "300.00", regional[1].TotalRevenue)
	assertMoney(t, "300.00", regional[1].MaxOrderValue)
}

func testZeroItemOrder(t *testing.T, newEngine Factory) {
	ctx := context.Background()
	p := Params(t)
	eng := newEngine(t, testutil.ZeroItemDataset(p.Location), p)

	monthly, err := eng.MonthlyTrends(ctx)
	require.NoError(t, err)
	require.Len(t, monthly, 1)

	m := monthly[0]
	assert.Equal(t, "2024-03", m.Month)
	assert.Equal(t, int64(2), m.OrderCount, "an order without items still counts")
	assert.Equal(t, int64(2), m.TotalItems)
	assertMoney(t, "200.00", m.TotalRevenue, "revenue is counted once per order")
	assertMoney(t, "100.00", m.AvgOrderValue)
	assert.Equal(t, int64(1), m.UniqueCustomers)
}

func testMonthBoundary(t *testing.T, newEngine Factory) {
	ctx := context.Background()
	p := Params(t)

	// 20:00 UTC on Jan 31 is 01:30 on Feb 1 in Kolkata.
	ds := core.NewDataset(
		[]core.Customer{{CustomerID: "C1", CustomerName: "Asha", MobileNumber: "9000000001", Region: "North"}},
		[]core.Order{
			{OrderID: "O1", MobileNumber: "9000000001", OrderDateTime: time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC), TotalAmount: money("10.00")},
			{OrderID: "O2", MobileNumber: "9000000001", OrderDateTime: time.Date(2024, 1, 31, 18, 0, 0, 0, time.UTC), TotalAmount: money("20.00")},
		},
		nil,
	)
	eng := newEngine(t, ds, p)

	monthly, err := eng.MonthlyTrends(ctx)
	require.NoError(t, err)
	require.Len(t, monthly, 2)
	assert.Equal(t, "2024-02", monthly[0].Month)
	assertMoney(t, "10.00", monthly[0].TotalRevenue)
	assert.Equal(t, "2024-01", monthly[1].Month)
	assertMoney(t, "20.00", monthly[1].TotalRevenue)
}

func testTopNLimit(t *testing.T, newEngine Factory) {
	ctx := context.Background()
	p := Params(t)
	placed := p.Now.Add(-time.Hour)

	var customers []core.Customer
	var orders []core.Order
	for i, id := range []string{"C3", "C1", "C2", "C4"} {
		phone := "900000000" + id[1:]
		customers = append(customers, core.Customer{CustomerID: id, CustomerName: id, MobileNumber: phone, Region: "West"})
		amount := "50.00"
		if id == "C4" {
			amount = "10.00"
		}
		orders = append(orders, core.Order{OrderID: "O" + id, MobileNumber: phone, OrderDateTime: placed.Add(time.Duration(i) * time.Minute), TotalAmount: money(amount)})
	}
	eng := newEngine(t, core.NewDataset(customers, orders, nil), p)

	top, err := eng.TopCustomers(ctx, p.Cutoff(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "C1", top[0].CustomerID, "equal spend breaks ties on customer_id")
	assert.Equal(t, "C2", top[1].CustomerID)

	regional, err := eng.RegionalRevenue(ctx)
	require.NoError(t, err)
	require.Len(t, regional, 1)
	assertMoney(t, "160.00", regional[0].TotalRevenue)
	assertMoney(t, "40.00", regional[0].AvgOrderValue)
	assertMoney(t, "50.00", regional[0].MaxOrderValue)
	assert.Equal(t, int64(4), regional[0].CustomerCount)
}

func testByteOrderTieBreak(t *testing.T, newEngine Factory) {
	ctx := context.Background()
	p := Params(t)
	placed := p.Now.Add(-time.Hour)

	ds := core.NewDataset(
		[]core.Customer{
			{CustomerID: "c1", CustomerName: "lower", MobileNumber: "9000000001", Region: "north"},
			{CustomerID: "C2", CustomerName: "upper", MobileNumber: "9000000002", Region: "South"},
		},
		[]core.Order{
			{OrderID: "O1", MobileNumber: "9000000001", OrderDateTime: placed, TotalAmount: money("50.00")},
			{OrderID: "O2", MobileNumber: "9000000002", OrderDateTime: placed, TotalAmount: money("50.00")},
		},
		nil,
	)
	eng := newEngine(t, ds, p)

	top, err := eng.TopCustomers(ctx, p.Cutoff(), p.TopN)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "C2", top[0].CustomerID, "upper case sorts before lower case")
	assert.Equal(t, "c1", top[1].CustomerID)

	regional, err := eng.RegionalRevenue(ctx)
	require.NoError(t, err)
	require.Len(t, regional, 2, "regions differing in case are distinct groups")
	assert.Equal(t, "South", regional[0].Region)
	assert.Equal(t, "north", regional[1].Region)
}

func testNegativeTopN(t *testing.T, newEngine Factory) {
	p := Params(t)
	eng := newEngine(t, testutil.ScenarioDataset(p.Now), p)

	top, err := eng.TopCustomers(context.Background(), p.Cutoff(), -1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top n must not be negative, got -1")
	assert.Nil(t, top)
}

func testFallBackWindow(t *testing.T, newEngine Factory) {
	ctx := context.Background()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Clocks go back from 02:00 EDT to 01:00 EST at 06:00 UTC on 2024-11-03.
	// O1 is 01:30 EDT, the cutoff 01:45 EDT and O2 01:30 EST: only O2 is
	// inside the window although its wall clock precedes the cutoff's.
	cutoff := time.Date(2024, 11, 3, 5, 45, 0, 0, time.UTC)
	inside := time.Date(2024, 11, 3, 6, 30, 0, 0, time.UTC)
	p := kpi.Params{Location: loc, Window: time.Hour, TopN: kpi.DefaultTopN, Now: cutoff.Add(time.Hour)}
	require.True(t, p.Cutoff().Equal(cutoff))

	ds := core.NewDataset(
		[]core.Customer{{CustomerID: "C1", CustomerName: "Asha", MobileNumber: "9000000001", Region: "North"}},
		[]core.Order{
			{OrderID: "O1", MobileNumber: "9000000001", OrderDateTime: time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC), TotalAmount: money("10.00")},
			{OrderID: "O2", MobileNumber: "9000000001", OrderDateTime: inside, TotalAmount: money("20.00")},
		},
		nil,
	)
	eng := newEngine(t, ds, p)

	top, err := eng.TopCustomers(ctx, p.Cutoff(), p.TopN)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(1), top[0].OrderCount)
	assertMoney(t, "20.00", top[0].TotalSpent)
	assert.True(t, top[0].FirstOrderDate.Equal(inside), "first order %s", top[0].FirstOrderDate)
	assert.True(t, top[0].LastOrderDate.Equal(inside), "last order %s", top[0].LastOrderDate)
	assert.Equal(t, "EST", top[0].LastOrderDate.Format("MST"), "reported in the business zone")

	monthly, err := eng.MonthlyTrends(ctx)
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, "2024-11", monthly[0].Month)
	assert.Equal(t, int64(2), monthly[0].OrderCount)
}

func testEmpty(t *testing.T, newEngine Factory) {
	ctx := context.Background()
	p := Params(t)
	eng := newEngine(t, core.NewDataset(nil, nil, nil), p)

	set, err := kpi.ComputeAll(ctx, eng, p, testutil.NewTestLogger(t))
	require.NoError(t, err)
	assert.Empty(t, set.RepeatCustomers)
	assert.Empty(t, set.MonthlyTrends)
	assert.Empty(t, set.RegionalRevenue)
	assert.Empty(t, set.TopCustomers)
}

func testInvariants(t *testing.T, newEngine Factory) {
	ctx := context.Background()
	p := Params(t)
	ds := testutil.GeneratedDataset(7, 60, 400, p.Now)
	eng := newEngine(t, ds, p)

	set, err := kpi.ComputeAll(ctx, eng, p, testutil.NewTestLogger(t))
	require.NoError(t, err)

	for _, r := range set.RepeatCustomers {
		assert.GreaterOrEqual(t, r.OrderCount, int64(2), "repeat customer %s", r.CustomerID)
	}

	cutoff := p.Cutoff()
	assert.LessOrEqual(t, len(set.TopCustomers), p.TopN)
	for i, r := range set.TopCustomers {
		assert.False(t, r.LastOrderDate.Before(cutoff), "top customer %s last order before cutoff", r.CustomerID)
		assert.False(t, r.FirstOrderDate.Before(cutoff), "top customer %s first order before cutoff", r.CustomerID)
		if i > 0 {
			assert.False(t, r.TotalSpent.GreaterThan(set.TopCustomers[i-1].TotalSpent), "top customers sorted by spend")
		}
	}

	// Regional additivity: regions partition the orders of known customers.
	known := make(map[string]bool)
	for _, c := range ds.Customers {
		known[c.MobileNumber] = true
	}
	joined := decimal.Zero
	var joinedOrders int64
	allRevenue := decimal.Zero
	for _, o := range ds.Orders {
		allRevenue = allRevenue.Add(o.TotalAmount)
		if known[o.MobileNumber] {
			joined = joined.Add(o.TotalAmount)
			joinedOrders++
		}
	}
	regionalRevenue := decimal.Zero
	var regionalOrders int64
	for _, r := range set.RegionalRevenue {
		regionalRevenue = regionalRevenue.Add(r.TotalRevenue)
		regionalOrders += r.OrderCount
	}
	assertMoney(t, joined.StringFixed(2), regionalRevenue, "regional revenue sums to joined revenue")
	assert.Equal(t, joinedOrders, regionalOrders)

	// Monthly completeness: every order lands in exactly one month.
	var monthlyOrders int64
	monthlyRevenue := decimal.Zero
	for i, m := range set.MonthlyTrends {
		monthlyOrders += m.OrderCount
		monthlyRevenue = monthlyRevenue.Add(m.TotalRevenue)
		if i > 0 {
			assert.Less(t, m.Month, set.MonthlyTrends[i-1].Month, "months sorted descending")
		}
	}
	assert.Equal(t, int64(len(ds.Orders)), monthlyOrders)
	assertMoney(t, allRevenue.StringFixed(2), monthlyRevenue)
}
