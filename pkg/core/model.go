package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a single customer record.
// MobileNumber is the business key orders join on; CustomerID is the primary key.
type Customer struct {
	CustomerID   string
	CustomerName string
	MobileNumber string
	Region       string
}

// Order is an order header. It references its customer by phone number.
type Order struct {
	OrderID       string
	MobileNumber  string
	OrderDateTime time.Time
	TotalAmount   decimal.Decimal
}

// OrderItem is one SKU line of an order. LineNo numbers the lines of one
// order from 1 in input order, and (OrderID, LineNo) is the item's key.
type OrderItem struct {
	OrderID  string
	LineNo   int64
	SKUID    string
	SKUCount int64
}

// ItemKey identifies an order item.
type ItemKey struct {
	OrderID string
	LineNo  int64
}

// Key returns the item's key.
func (i OrderItem) Key() ItemKey {
	return ItemKey{OrderID: i.OrderID, LineNo: i.LineNo}
}

// Dataset bundles the three normalized input tables of a run.
// A Dataset is read-only once built; both aggregation paths consume the same value.
type Dataset struct {
	Customers  []Customer
	Orders     []Order
	OrderItems []OrderItem
}

// NewDataset normalizes raw input tables into a Dataset.
//
// Duplicate primary keys resolve last-write-wins, the same rule the relational
// merge applies, so the in-memory path and the store hold identical rows. The
// position of a key is that of its first occurrence.
func NewDataset(customers []Customer, orders []Order, items []OrderItem) *Dataset {
	return &Dataset{
		Customers:  lastWriteWins(customers, func(c Customer) string { return c.CustomerID }),
		Orders:     lastWriteWins(orders, func(o Order) string { return o.OrderID }),
		OrderItems: lastWriteWins(items, OrderItem.Key),
	}
}

func lastWriteWins[T any, K comparable](rows []T, key func(T) K) []T {
	out := make([]T, 0, len(rows))
	pos := make(map[K]int, len(rows))
	for _, r := range rows {
		k := key(r)
		if i, ok := pos[k]; ok {
			out[i] = r
			continue
		}
		pos[k] = len(out)
		out = append(out, r)
	}
	return out
}

// CustomersByPhone indexes customers on the join key.
func (d *Dataset) CustomersByPhone() map[string][]Customer {
	idx := make(map[string][]Customer, len(d.Customers))
	for _, c := range d.Customers {
		idx[c.MobileNumber] = append(idx[c.MobileNumber], c)
	}
	return idx
}

// ItemRowsByOrder counts item rows per order id.
func (d *Dataset) ItemRowsByOrder() map[string]int64 {
	counts := make(map[string]int64)
	for _, it := range d.OrderItems {
		counts[it.OrderID]++
	}
	return counts
}

// Stats summarizes a dataset for logging.
type Stats struct {
	Customers  int             `json:"customers"`
	Orders     int             `json:"orders"`
	OrderItems int             `json:"order_items"`
	Revenue    decimal.Decimal `json:"revenue"`
	FirstOrder time.Time       `json:"first_order"`
	LastOrder  time.Time       `json:"last_order"`
}

// Stats returns summary statistics of the dataset.
func (d *Dataset) Stats() Stats {
	s := Stats{
		Customers:  len(d.Customers),
		Orders:     len(d.Orders),
		OrderItems: len(d.OrderItems),
		Revenue:    decimal.Zero,
	}
	for i, o := range d.Orders {
		s.Revenue = s.Revenue.Add(o.TotalAmount)
		if i == 0 || o.OrderDateTime.Before(s.FirstOrder) {
			s.FirstOrder = o.OrderDateTime
		}
		if i == 0 || o.OrderDateTime.After(s.LastOrder) {
			s.LastOrder = o.OrderDateTime
		}
	}
	return s
}
