package testutil

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/leapstack-labs/leapkpi/pkg/adapter"
	"github.com/leapstack-labs/leapkpi/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Kolkata returns the Asia/Kolkata zone.
func Kolkata(t testing.TB) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

// OpenSQLite returns a connected in-memory SQLite adapter closed at cleanup.
func OpenSQLite(t testing.TB) adapter.Adapter {
	t.Helper()
	adp := sqlite.New(NewTestLogger(t))
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Path: ":memory:"}))
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}

// Money parses a decimal literal.
func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ScenarioDataset builds the two-customer scenario:
// C1 ordered 5, 10 and 40 days before now; C2 ordered once, 5 days before now.
func ScenarioDataset(now time.Time) *core.Dataset {
	day := 24 * time.Hour
	customers := []core.Customer{
		{CustomerID: "C1", CustomerName: "Asha", MobileNumber: "9000000001", Region: "North"},
		{CustomerID: "C2", CustomerName: "Ravi", MobileNumber: "9000000002", Region: "South"},
	}
	orders := []core.Order{
		{OrderID: "O1", MobileNumber: "9000000001", OrderDateTime: now.Add(-5 * day), TotalAmount: Money("100.00")},
		{OrderID: "O2", MobileNumber: "9000000001", OrderDateTime: now.Add(-10 * day), TotalAmount: Money("250.50")},
		{OrderID: "O3", MobileNumber: "9000000001", OrderDateTime: now.Add(-40 * day), TotalAmount: Money("75.25")},
		{OrderID: "O4", MobileNumber: "9000000002", OrderDateTime: now.Add(-5 * day), TotalAmount: Money("300.00")},
	}
	items := []core.OrderItem{
		{OrderID: "O1", LineNo: 1, SKUID: "SKU-1", SKUCount: 1},
		{OrderID: "O1", LineNo: 2, SKUID: "SKU-2", SKUCount: 2},
		{OrderID: "O2", LineNo: 1, SKUID: "SKU-1", SKUCount: 1},
		{OrderID: "O3", LineNo: 1, SKUID: "SKU-3", SKUCount: 4},
		{OrderID: "O4", LineNo: 1, SKUID: "SKU-2", SKUCount: 1},
		{OrderID: "O4", LineNo: 2, SKUID: "SKU-3", SKUCount: 1},
		{OrderID: "O4", LineNo: 3, SKUID: "SKU-4", SKUCount: 3},
	}
	return core.NewDataset(customers, orders, items)
}

// ZeroItemDataset has one order with two items and one with none, both in
// the same month.
func ZeroItemDataset(loc *time.Location) *core.Dataset {
	customers := []core.Customer{
		{CustomerID: "C1", CustomerName: "Asha", MobileNumber: "9000000001", Region: "North"},
	}
	orders := []core.Order{
		{OrderID: "O1", MobileNumber: "9000000001", OrderDateTime: time.Date(2024, 3, 2, 10, 0, 0, 0, loc), TotalAmount: Money("120.00")},
		{OrderID: "O2", MobileNumber: "9000000001", OrderDateTime: time.Date(2024, 3, 20, 18, 30, 0, 0, loc), TotalAmount: Money("80.00")},
	}
	items := []core.OrderItem{
		{OrderID: "O1", LineNo: 1, SKUID: "SKU-1", SKUCount: 1},
		{OrderID: "O1", LineNo: 2, SKUID: "SKU-2", SKUCount: 5},
	}
	return core.NewDataset(customers, orders, items)
}

var regions = []string{"North", "South", "East", "West", "Central"}

// GeneratedDataset builds a pseudo-random dataset from seed. Orders fall in
// the 400 days before now; some reference phones with no customer and some
// have no items.
func GeneratedDataset(seed uint64, customers, orders int, now time.Time) *core.Dataset {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	cs := make([]core.Customer, 0, customers)
	for i := range customers {
		cs = append(cs, core.Customer{
			CustomerID:   fmt.Sprintf("C%04d", i+1),
			CustomerName: fmt.Sprintf("Customer %d", i+1),
			MobileNumber: fmt.Sprintf("9%09d", i+1),
			Region:       regions[r.IntN(len(regions))],
		})
	}

	var ords []core.Order
	var items []core.OrderItem
	for i := range orders {
		phone := fmt.Sprintf("9%09d", r.IntN(customers+customers/10+1)+1)
		placed := now.Add(-time.Duration(r.Int64N(int64(400 * 24 * time.Hour)))).Truncate(time.Second)
		cents := r.Int64N(500000) + 100
		id := fmt.Sprintf("O%05d", i+1)
		ords = append(ords, core.Order{
			OrderID:       id,
			MobileNumber:  phone,
			OrderDateTime: placed,
			TotalAmount:   decimal.New(cents, -2),
		})
		for line := range r.IntN(4) {
			items = append(items, core.OrderItem{
				OrderID:  id,
				LineNo:   int64(line + 1),
				SKUID:    fmt.Sprintf("SKU-%d", r.IntN(50)+1),
				SKUCount: int64(r.IntN(5) + 1),
			})
		}
	}
	return core.NewDataset(cs, ords, items)
}

// BatchDatasets returns two batches as they arrive from consecutive input
// files. Each batch numbers its item lines from 1, and C1 is re-sent in the
// second batch with a new region.
func BatchDatasets(now time.Time) (first, second *core.Dataset) {
	first = core.NewDataset(
		[]core.Customer{{CustomerID: "C1", CustomerName: "Asha", MobileNumber: "9000000001", Region: "North"}},
		[]core.Order{
			{OrderID: "A1", MobileNumber: "9000000001", OrderDateTime: now.Add(-3 * 24 * time.Hour), TotalAmount: Money("120.00")},
		},
		[]core.OrderItem{
			{OrderID: "A1", LineNo: 1, SKUID: "SKU-1", SKUCount: 2},
			{OrderID: "A1", LineNo: 2, SKUID: "SKU-2", SKUCount: 1},
		},
	)
	second = core.NewDataset(
		[]core.Customer{
			{CustomerID: "C1", CustomerName: "Asha", MobileNumber: "9000000001", Region: "East"},
			{CustomerID: "C2", CustomerName: "Ravi", MobileNumber: "9000000002", Region: "South"},
		},
		[]core.Order{
			{OrderID: "B1", MobileNumber: "9000000001", OrderDateTime: now.Add(-2 * 24 * time.Hour), TotalAmount: Money("80.00")},
			{OrderID: "B2", MobileNumber: "9000000002", OrderDateTime: now.Add(-40 * 24 * time.Hour), TotalAmount: Money("45.50")},
		},
		[]core.OrderItem{
			{OrderID: "B1", LineNo: 1, SKUID: "SKU-3", SKUCount: 4},
			{OrderID: "B2", LineNo: 1, SKUID: "SKU-1", SKUCount: 1},
		},
	)
	return first, second
}

// UnionDataset combines batches the way consecutive merges do: later batches
// win on every key, and an order carried again keeps only its latest lines.
func UnionDataset(batches ...*core.Dataset) *core.Dataset {
	var customers []core.Customer
	var orders []core.Order
	var items []core.OrderItem
	for _, b := range batches {
		resent := make(map[string]bool)
		for _, o := range b.Orders {
			resent[o.OrderID] = true
		}
		for _, it := range b.OrderItems {
			resent[it.OrderID] = true
		}
		items = slices.DeleteFunc(items, func(it core.OrderItem) bool { return resent[it.OrderID] })

		customers = append(customers, b.Customers...)
		orders = append(orders, b.Orders...)
		items = append(items, b.OrderItems...)
	}
	return core.NewDataset(customers, orders, items)
}
