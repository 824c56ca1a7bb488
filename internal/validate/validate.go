// Package validate runs data-quality checks over a loaded dataset.
//
// Findings that the KPI definitions tolerate are returned as warnings and the
// run continues on the data as-is. Breaks of the data model are fatal.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapkpi/pkg/core"
)

const op = "validate"

var mobilePattern = regexp.MustCompile(`^\d{10}$`)

// Dataset checks raw, the un-normalized input tables. Duplicate customer ids
// are expected there and resolve last-write-wins; every other check runs on
// the normalized rows.
func Dataset(raw *core.Dataset) ([]core.Warning, error) {
	var warnings []core.Warning
	add := func(code core.WarningCode, n int, format string, args ...any) {
		if n > 0 {
			warnings = append(warnings, core.Warning{Code: code, Count: n, Message: fmt.Sprintf(format, args...)})
		}
	}

	seen := make(map[string]int, len(raw.Customers))
	for _, c := range raw.Customers {
		seen[c.CustomerID]++
	}
	dup := make([]string, 0)
	for id, n := range seen {
		if n > 1 {
			dup = append(dup, id)
		}
	}
	add(core.WarnDuplicateCustomerID, len(dup), "customer ids appear more than once, last row wins: %s", sample(dup))

	ds := core.NewDataset(raw.Customers, raw.Orders, raw.OrderItems)

	if err := checkJoinKey(ds.Customers); err != nil {
		return nil, err
	}
	if err := checkOrders(ds.Orders); err != nil {
		return nil, err
	}

	var badMobiles []string
	for _, c := range ds.Customers {
		if !mobilePattern.MatchString(c.MobileNumber) {
			badMobiles = append(badMobiles, c.CustomerID)
		}
	}
	add(core.WarnInvalidMobileNumber, len(badMobiles), "customers with a mobile number that is not 10 digits: %s", sample(badMobiles))

	phones := make(map[string]bool, len(ds.Customers))
	for _, c := range ds.Customers {
		phones[c.MobileNumber] = true
	}
	orderIDs := make(map[string]bool, len(ds.Orders))
	var negative, unknown []string
	for _, o := range ds.Orders {
		orderIDs[o.OrderID] = true
		if o.TotalAmount.IsNegative() {
			negative = append(negative, o.OrderID)
		}
		if !phones[o.MobileNumber] {
			unknown = append(unknown, o.OrderID)
		}
	}
	add(core.WarnNegativeAmount, len(negative), "orders with a negative total_amount: %s", sample(negative))
	add(core.WarnUnknownCustomer, len(unknown), "orders whose mobile number matches no customer, excluded from customer KPIs: %s", sample(unknown))

	var badCount, orphan []string
	for _, it := range ds.OrderItems {
		if it.SKUCount <= 0 {
			badCount = append(badCount, fmt.Sprintf("%s/%s", it.OrderID, it.SKUID))
		}
		if !orderIDs[it.OrderID] {
			orphan = append(orphan, fmt.Sprintf("%s/%s", it.OrderID, it.SKUID))
		}
	}
	add(core.WarnInvalidSKUCount, len(badCount), "order items with sku_count <= 0: %s", sample(badCount))
	add(core.WarnOrphanOrderItem, len(orphan), "order items referencing an unknown order: %s", sample(orphan))

	return warnings, nil
}

func checkJoinKey(customers []core.Customer) error {
	owner := make(map[string]string, len(customers))
	for _, c := range customers {
		if prev, ok := owner[c.MobileNumber]; ok {
			return core.SchemaViolation(op, "customers %s and %s share mobile number %s", prev, c.CustomerID, c.MobileNumber)
		}
		owner[c.MobileNumber] = c.CustomerID
	}
	return nil
}

func checkOrders(orders []core.Order) error {
	for i, o := range orders {
		switch {
		case strings.TrimSpace(o.OrderID) == "":
			return core.SchemaViolation(op, "order %d has an empty order_id", i+1)
		case strings.TrimSpace(o.MobileNumber) == "":
			return core.SchemaViolation(op, "order %s has an empty mobile_number", o.OrderID)
		case o.OrderDateTime.IsZero():
			return core.SchemaViolation(op, "order %s has no order_date_time", o.OrderID)
		}
	}
	return nil
}

const sampleSize = 5

// sample lists up to sampleSize keys in sorted order.
func sample(keys []string) string {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	if len(sorted) <= sampleSize {
		return strings.Join(sorted, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(sorted[:sampleSize], ", "), len(sorted)-sampleSize)
}
