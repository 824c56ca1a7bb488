// Package inmemory computes the KPIs with hash joins and group-bys over a
// core.Dataset held in memory.
package inmemory

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/leapstack-labs/leapkpi/internal/kpi"
	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/shopspring/decimal"
)

// Engine implements kpi.Engine over a Dataset. The dataset is never mutated.
type Engine struct {
	ds     *core.Dataset
	loc    *time.Location
	logger *slog.Logger
}

// New creates an in-memory engine. Month keys are taken in loc.
func New(ds *core.Dataset, loc *time.Location, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{ds: ds, loc: loc, logger: logger}
}

// Name implements kpi.Engine.
func (e *Engine) Name() string { return "in-memory" }

// joined is an order matched to a customer on mobile number.
type joined struct {
	order    core.Order
	customer core.Customer
}

// join is an inner join of orders to customers on mobile number. An order
// matching several customers yields one row per match, like the SQL join.
func (e *Engine) join(keep func(core.Order) bool) []joined {
	byPhone := e.ds.CustomersByPhone()
	var out []joined
	for _, o := range e.ds.Orders {
		if keep != nil && !keep(o) {
			continue
		}
		for _, c := range byPhone[o.MobileNumber] {
			out = append(out, joined{order: o, customer: c})
		}
	}
	return out
}

// customerAgg accumulates per-customer figures.
type customerAgg struct {
	customer core.Customer
	orders   map[string]struct{}
	spent    decimal.Decimal
	first    time.Time
	last     time.Time
}

func groupByCustomer(rows []joined) []*customerAgg {
	idx := make(map[core.Customer]*customerAgg)
	var groups []*customerAgg
	for _, r := range rows {
		g, ok := idx[r.customer]
		if !ok {
			g = &customerAgg{customer: r.customer, orders: make(map[string]struct{}), spent: decimal.Zero}
			idx[r.customer] = g
			groups = append(groups, g)
		}
		g.orders[r.order.OrderID] = struct{}{}
		g.spent = g.spent.Add(r.order.TotalAmount)
		if g.first.IsZero() || r.order.OrderDateTime.Before(g.first) {
			g.first = r.order.OrderDateTime
		}
		if g.last.IsZero() || r.order.OrderDateTime.After(g.last) {
			g.last = r.order.OrderDateTime
		}
	}
	return groups
}

// RepeatCustomers implements kpi.Engine.
func (e *Engine) RepeatCustomers(ctx context.Context) ([]core.RepeatCustomer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []core.RepeatCustomer
	for _, g := range groupByCustomer(e.join(nil)) {
		if len(g.orders) < 2 {
			continue
		}
		out = append(out, core.RepeatCustomer{
			CustomerID:   g.customer.CustomerID,
			CustomerName: g.customer.CustomerName,
			MobileNumber: g.customer.MobileNumber,
			Region:       g.customer.Region,
			OrderCount:   int64(len(g.orders)),
			TotalSpent:   kpi.RoundMoney(g.spent),
		})
	}

	slices.SortFunc(out, func(a, b core.RepeatCustomer) int {
		if c := cmp.Compare(b.OrderCount, a.OrderCount); c != 0 {
			return c
		}
		if c := b.TotalSpent.Cmp(a.TotalSpent); c != 0 {
			return c
		}
		return cmp.Compare(a.CustomerID, b.CustomerID)
	})
	return out, nil
}

// MonthlyTrends implements kpi.Engine.
func (e *Engine) MonthlyTrends(ctx context.Context) ([]core.MonthlyTrend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type monthAgg struct {
		orders  int64
		items   int64
		revenue decimal.Decimal
		phones  map[string]struct{}
	}

	items := e.ds.ItemRowsByOrder()
	months := make(map[string]*monthAgg)
	for _, o := range e.ds.Orders {
		key := o.OrderDateTime.In(e.loc).Format("2006-01")
		m, ok := months[key]
		if !ok {
			m = &monthAgg{revenue: decimal.Zero, phones: make(map[string]struct{})}
			months[key] = m
		}
		m.orders++
		m.items += items[o.OrderID]
		m.revenue = m.revenue.Add(o.TotalAmount)
		m.phones[o.MobileNumber] = struct{}{}
	}

	out := make([]core.MonthlyTrend, 0, len(months))
	for key, m := range months {
		revenue := kpi.RoundMoney(m.revenue)
		out = append(out, core.MonthlyTrend{
			Month:           key,
			OrderCount:      m.orders,
			TotalItems:      m.items,
			TotalRevenue:    revenue,
			AvgOrderValue:   kpi.Average(revenue, m.orders),
			UniqueCustomers: int64(len(m.phones)),
		})
	}

	slices.SortFunc(out, func(a, b core.MonthlyTrend) int {
		return cmp.Compare(b.Month, a.Month)
	})
	return out, nil
}

// RegionalRevenue implements kpi.Engine.
func (e *Engine) RegionalRevenue(ctx context.Context) ([]core.RegionalRevenue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type regionAgg struct {
		customers map[string]struct{}
		orders    map[string]struct{}
		revenue   decimal.Decimal
		max       decimal.Decimal
	}

	regions := make(map[string]*regionAgg)
	for _, r := range e.join(nil) {
		g, ok := regions[r.customer.Region]
		if !ok {
			g = &regionAgg{
				customers: make(map[string]struct{}),
				orders:    make(map[string]struct{}),
				revenue:   decimal.Zero,
				max:       r.order.TotalAmount,
			}
			regions[r.customer.Region] = g
		}
		g.customers[r.customer.CustomerID] = struct{}{}
		g.orders[r.order.OrderID] = struct{}{}
		g.revenue = g.revenue.Add(r.order.TotalAmount)
		if r.order.TotalAmount.GreaterThan(g.max) {
			g.max = r.order.TotalAmount
		}
	}

	out := make([]core.RegionalRevenue, 0, len(regions))
	for region, g := range regions {
		revenue := kpi.RoundMoney(g.revenue)
		out = append(out, core.RegionalRevenue{
			Region:        region,
			CustomerCount: int64(len(g.customers)),
			OrderCount:    int64(len(g.orders)),
			TotalRevenue:  revenue,
			AvgOrderValue: kpi.Average(revenue, int64(len(g.orders))),
			MaxOrderValue: kpi.RoundMoney(g.max),
		})
	}

	slices.SortFunc(out, func(a, b core.RegionalRevenue) int {
		if c := b.TotalRevenue.Cmp(a.TotalRevenue); c != 0 {
			return c
		}
		return cmp.Compare(a.Region, b.Region)
	})
	return out, nil
}

// TopCustomers implements kpi.Engine. Orders before cutoff are dropped
// before grouping.
func (e *Engine) TopCustomers(ctx context.Context, cutoff time.Time, topN int) ([]core.TopCustomer, error) {
	if err := kpi.CheckTopN(topN); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inWindow := func(o core.Order) bool { return !o.OrderDateTime.Before(cutoff) }

	var out []core.TopCustomer
	for _, g := range groupByCustomer(e.join(inWindow)) {
		out = append(out, core.TopCustomer{
			CustomerID:     g.customer.CustomerID,
			CustomerName:   g.customer.CustomerName,
			MobileNumber:   g.customer.MobileNumber,
			Region:         g.customer.Region,
			OrderCount:     int64(len(g.orders)),
			TotalSpent:     kpi.RoundMoney(g.spent),
			LastOrderDate:  g.last.In(e.loc),
			FirstOrderDate: g.first.In(e.loc),
		})
	}

	slices.SortFunc(out, func(a, b core.TopCustomer) int {
		if c := b.TotalSpent.Cmp(a.TotalSpent); c != 0 {
			return c
		}
		return cmp.Compare(a.CustomerID, b.CustomerID)
	})

	if len(out) > topN {
		out = out[:topN]
	}
	e.logger.Debug("top customers ranked", slog.Time("cutoff", cutoff), slog.Int("rows", len(out)))
	return out, nil
}

var _ kpi.Engine = (*Engine)(nil)
