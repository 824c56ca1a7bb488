package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// KPIName identifies one of the fixed KPI result tables.
type KPIName string

// KPI names, in report order.
const (
	KPIRepeatCustomers KPIName = "repeat_customers"
	KPIMonthlyTrends   KPIName = "monthly_trends"
	KPIRegionalRevenue KPIName = "regional_revenue"
	KPITopCustomers    KPIName = "top_customers_last_30_days"
)

// AllKPIs lists every KPI in report order.
var AllKPIs = []KPIName{
	KPIRepeatCustomers,
	KPIMonthlyTrends,
	KPIRegionalRevenue,
	KPITopCustomers,
}

var kpiTitles = map[KPIName]string{
	KPIRepeatCustomers: "Repeat Customers",
	KPIMonthlyTrends:   "Monthly Trends",
	KPIRegionalRevenue: "Regional Revenue",
	KPITopCustomers:    "Top Customers 30D",
}

// Title returns the display name of a KPI.
func (k KPIName) Title() string {
	if t, ok := kpiTitles[k]; ok {
		return t
	}
	return string(k)
}

// RepeatCustomer is a row of the repeat customers KPI.
type RepeatCustomer struct {
	CustomerID   string
	CustomerName string
	MobileNumber string
	Region       string
	OrderCount   int64
	TotalSpent   decimal.Decimal
}

// MonthlyTrend is a row of the monthly trends KPI. Month is "YYYY-MM".
type MonthlyTrend struct {
	Month           string
	OrderCount      int64
	TotalItems      int64
	TotalRevenue    decimal.Decimal
	AvgOrderValue   decimal.Decimal
	UniqueCustomers int64
}

// RegionalRevenue is a row of the regional revenue KPI.
type RegionalRevenue struct {
	Region        string
	CustomerCount int64
	OrderCount    int64
	TotalRevenue  decimal.Decimal
	AvgOrderValue decimal.Decimal
	MaxOrderValue decimal.Decimal
}

// TopCustomer is a row of the top customers KPI.
// Only orders inside the window contribute to any column.
type TopCustomer struct {
	CustomerID     string
	CustomerName   string
	MobileNumber   string
	Region         string
	OrderCount     int64
	TotalSpent     decimal.Decimal
	LastOrderDate  time.Time
	FirstOrderDate time.Time
}

// KPISet holds the four KPI results of one engine.
type KPISet struct {
	RepeatCustomers []RepeatCustomer
	MonthlyTrends   []MonthlyTrend
	RegionalRevenue []RegionalRevenue
	TopCustomers    []TopCustomer
}

// Tables converts the typed results into generic tables keyed by KPI name.
func (s *KPISet) Tables() map[KPIName]*Table {
	return map[KPIName]*Table{
		KPIRepeatCustomers: repeatCustomersTable(s.RepeatCustomers),
		KPIMonthlyTrends:   monthlyTrendsTable(s.MonthlyTrends),
		KPIRegionalRevenue: regionalRevenueTable(s.RegionalRevenue),
		KPITopCustomers:    topCustomersTable(s.TopCustomers),
	}
}

func repeatCustomersTable(rows []RepeatCustomer) *Table {
	t := &Table{
		Name:    KPIRepeatCustomers,
		Columns: []string{"customer_id", "customer_name", "mobile_number", "region", "order_count", "total_spent"},
		Key:     []string{"customer_id"},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.CustomerID, r.CustomerName, r.MobileNumber, r.Region, r.OrderCount, r.TotalSpent})
	}
	return t
}

func monthlyTrendsTable(rows []MonthlyTrend) *Table {
	t := &Table{
		Name:    KPIMonthlyTrends,
		Columns: []string{"month", "order_count", "total_items", "total_revenue", "avg_order_value", "unique_customers"},
		Key:     []string{"month"},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Month, r.OrderCount, r.TotalItems, r.TotalRevenue, r.AvgOrderValue, r.UniqueCustomers})
	}
	return t
}

func regionalRevenueTable(rows []RegionalRevenue) *Table {
	t := &Table{
		Name:    KPIRegionalRevenue,
		Columns: []string{"region", "customer_count", "order_count", "total_revenue", "avg_order_value", "max_order_value"},
		Key:     []string{"region"},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Region, r.CustomerCount, r.OrderCount, r.TotalRevenue, r.AvgOrderValue, r.MaxOrderValue})
	}
	return t
}

func topCustomersTable(rows []TopCustomer) *Table {
	t := &Table{
		Name: KPITopCustomers,
		Columns: []string{"customer_id", "customer_name", "mobile_number", "region", "order_count",
			"total_spent", "last_order_date", "first_order_date"},
		Key: []string{"customer_id"},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.CustomerID, r.CustomerName, r.MobileNumber, r.Region, r.OrderCount,
			r.TotalSpent, r.LastOrderDate, r.FirstOrderDate})
	}
	return t
}
