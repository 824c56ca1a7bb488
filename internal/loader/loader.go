// Package loader reads the customer and order sources into raw tables.
//
// Raw tables keep every input row in file order; duplicate keys are resolved
// later by core.NewDataset so that validation can still see them.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/leapstack-labs/leapkpi/pkg/core"
)

// Source is the raw content of both input files.
type Source struct {
	Customers  []core.Customer
	Orders     []core.Order
	OrderItems []core.OrderItem
	// Warnings covers rows dropped while reading.
	Warnings []core.Warning
}

// Raw returns the tables without key normalization.
func (s *Source) Raw() *core.Dataset {
	return &core.Dataset{Customers: s.Customers, Orders: s.Orders, OrderItems: s.OrderItems}
}

// Dataset returns the normalized dataset.
func (s *Source) Dataset() *core.Dataset {
	return core.NewDataset(s.Customers, s.Orders, s.OrderItems)
}

// Loader reads source files. Naive timestamps are taken as wall clocks of Location.
type Loader struct {
	Location *time.Location
	Logger   *slog.Logger
}

// New creates a Loader. If logger is nil, a discard logger is used.
func New(loc *time.Location, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Loader{Location: loc, Logger: logger}
}

// Load reads the customers CSV and the orders XML.
func (l *Loader) Load(customersPath, ordersPath string) (*Source, error) {
	src := &Source{}

	customers, dropped, err := l.LoadCustomers(customersPath)
	if err != nil {
		return nil, err
	}
	src.Customers = customers
	if dropped > 0 {
		src.Warnings = append(src.Warnings, core.Warning{
			Code:    core.WarnDroppedRow,
			Count:   dropped,
			Message: "customer rows without customer_id or mobile_number were dropped",
		})
	}

	orders, items, err := l.LoadOrders(ordersPath)
	if err != nil {
		return nil, err
	}
	src.Orders = orders
	src.OrderItems = items

	return src, nil
}

func openSource(op, path string) (*os.File, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, core.SourceUnavailable(op, err)
		}
		return nil, core.SourceUnavailable(op, fmt.Errorf("open %s: %w", path, err))
	}
	return f, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without an offset are
// wall clocks of loc; values with one keep their instant.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
