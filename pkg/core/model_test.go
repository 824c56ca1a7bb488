package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataset_LastWriteWins(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	ds := NewDataset(
		[]Customer{
			{CustomerID: "C1", CustomerName: "Old", MobileNumber: "9000000001", Region: "North"},
			{CustomerID: "C2", CustomerName: "Bob", MobileNumber: "9000000002", Region: "South"},
			{CustomerID: "C1", CustomerName: "New", MobileNumber: "9000000001", Region: "East"},
		},
		[]Order{
			{OrderID: "O1", MobileNumber: "9000000001", OrderDateTime: ts, TotalAmount: decimal.NewFromInt(10)},
			{OrderID: "O1", MobileNumber: "9000000001", OrderDateTime: ts, TotalAmount: decimal.NewFromInt(25)},
		},
		[]OrderItem{
			{OrderID: "O1", LineNo: 1, SKUID: "A", SKUCount: 1},
			{OrderID: "O1", LineNo: 2, SKUID: "B", SKUCount: 2},
			{OrderID: "O1", LineNo: 1, SKUID: "A", SKUCount: 3},
		},
	)

	require.Len(t, ds.Customers, 2)
	assert.Equal(t, "C1", ds.Customers[0].CustomerID, "first occurrence keeps its position")
	assert.Equal(t, "New", ds.Customers[0].CustomerName)
	assert.Equal(t, "East", ds.Customers[0].Region)

	require.Len(t, ds.Orders, 1)
	assert.True(t, ds.Orders[0].TotalAmount.Equal(decimal.NewFromInt(25)))
	require.Len(t, ds.OrderItems, 2)
	assert.Equal(t, int64(3), ds.OrderItems[0].SKUCount, "items resolve on order and line")
}

func TestDataset_Indexes(t *testing.T) {
	ds := NewDataset(
		[]Customer{{CustomerID: "C1", MobileNumber: "1"}, {CustomerID: "C2", MobileNumber: "2"}},
		nil,
		[]OrderItem{{OrderID: "O1", LineNo: 1}, {OrderID: "O1", LineNo: 2}, {OrderID: "O2", LineNo: 1}},
	)

	byPhone := ds.CustomersByPhone()
	assert.Len(t, byPhone["1"], 1)
	assert.Empty(t, byPhone["3"])

	items := ds.ItemRowsByOrder()
	assert.Equal(t, int64(2), items["O1"])
	assert.Equal(t, int64(1), items["O2"])
	assert.Equal(t, int64(0), items["O3"])
}

func TestDataset_Stats(t *testing.T) {
	first := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	ds := NewDataset(nil, []Order{
		{OrderID: "O2", OrderDateTime: last, TotalAmount: decimal.RequireFromString("20.50")},
		{OrderID: "O1", OrderDateTime: first, TotalAmount: decimal.RequireFromString("9.50")},
	}, nil)

	s := ds.Stats()
	assert.Equal(t, 2, s.Orders)
	assert.Equal(t, "30.00", s.Revenue.StringFixed(2))
	assert.Equal(t, first, s.FirstOrder)
	assert.Equal(t, last, s.LastOrder)
}
