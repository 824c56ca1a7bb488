package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapkpi/pkg/core"
)

const unknownValue = "Unknown"

var customerColumns = []string{"customer_id", "customer_name", "mobile_number", "region"}

// LoadCustomers reads the customers CSV. Rows missing customer_id or
// mobile_number are dropped and counted; a missing name or region becomes
// "Unknown".
func (l *Loader) LoadCustomers(path string) ([]core.Customer, int, error) {
	const op = "load customers"

	f, err := openSource(op, path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	customers, dropped, err := readCustomers(f)
	if err != nil {
		return nil, 0, err
	}

	l.Logger.Info("customers loaded",
		slog.String("path", path),
		slog.Int("rows", len(customers)),
		slog.Int("dropped", dropped),
	)
	return customers, dropped, nil
}

func readCustomers(r io.Reader) ([]core.Customer, int, error) {
	const op = "load customers"

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, core.SchemaViolation(op, "empty file, expected header %s", strings.Join(customerColumns, ","))
	}
	if err != nil {
		return nil, 0, core.SchemaViolation(op, "read header: %v", err)
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "﻿")))] = i
	}
	var missing []string
	for _, c := range customerColumns {
		if _, ok := pos[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, 0, core.SchemaViolation(op, "missing required columns %v", missing)
	}

	field := func(rec []string, col string) string {
		i := pos[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []core.Customer
	dropped := 0
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, core.SchemaViolation(op, "line %d: %v", line, err)
		}

		c := core.Customer{
			CustomerID:   field(rec, "customer_id"),
			CustomerName: field(rec, "customer_name"),
			MobileNumber: field(rec, "mobile_number"),
			Region:       field(rec, "region"),
		}
		if c.CustomerID == "" || c.MobileNumber == "" {
			dropped++
			continue
		}
		if c.CustomerName == "" {
			c.CustomerName = unknownValue
		}
		if c.Region == "" {
			c.Region = unknownValue
		}
		out = append(out, c)
	}
	return out, dropped, nil
}

// formatMissing is used in messages about absent XML fields.
func formatMissing(fields []string) string {
	return fmt.Sprintf("missing %s", strings.Join(fields, ", "))
}
