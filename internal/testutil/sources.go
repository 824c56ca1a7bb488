package testutil

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapkpi/pkg/core"
)

// WriteSources writes ds as a customers CSV and an orders XML in dir, with
// timestamps as naive wall clocks of loc. Every order needs at least one
// item, since the XML carries orders only as item lines.
func WriteSources(t testing.TB, dir string, ds *core.Dataset, loc *time.Location) (customersPath, ordersPath string) {
	t.Helper()

	var cb strings.Builder
	w := csv.NewWriter(&cb)
	_ = w.Write([]string{"customer_id", "customer_name", "mobile_number", "region"})
	for _, c := range ds.Customers {
		_ = w.Write([]string{c.CustomerID, c.CustomerName, c.MobileNumber, c.Region})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("write customers: %v", err)
	}

	items := make(map[string][]core.OrderItem)
	for _, it := range ds.OrderItems {
		items[it.OrderID] = append(items[it.OrderID], it)
	}

	var ob strings.Builder
	ob.WriteString(xml.Header + "<orders>\n")
	for _, o := range ds.Orders {
		lines := items[o.OrderID]
		if len(lines) == 0 {
			t.Fatalf("order %s has no items and cannot be written as xml", o.OrderID)
		}
		for _, it := range lines {
			ob.WriteString("  <order>\n")
			field(&ob, "order_id", o.OrderID)
			field(&ob, "mobile_number", o.MobileNumber)
			field(&ob, "order_date_time", o.OrderDateTime.In(loc).Format("2006-01-02T15:04:05"))
			field(&ob, "sku_id", it.SKUID)
			field(&ob, "sku_count", strconv.FormatInt(it.SKUCount, 10))
			field(&ob, "total_amount", o.TotalAmount.StringFixed(2))
			ob.WriteString("  </order>\n")
		}
	}
	ob.WriteString("</orders>\n")

	customersPath = filepath.Join(dir, "customers.csv")
	ordersPath = filepath.Join(dir, "orders.xml")
	if err := os.WriteFile(customersPath, []byte(cb.String()), 0o600); err != nil {
		t.Fatalf("write customers: %v", err)
	}
	if err := os.WriteFile(ordersPath, []byte(ob.String()), 0o600); err != nil {
		t.Fatalf("write orders: %v", err)
	}
	return customersPath, ordersPath
}

func field(b *strings.Builder, name, value string) {
	var esc strings.Builder
	_ = xml.EscapeText(&esc, []byte(value))
	fmt.Fprintf(b, "    <%s>%s</%s>\n", name, esc.String(), name)
}
