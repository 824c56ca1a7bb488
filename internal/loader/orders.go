package loader

import (
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/shopspring/decimal"
)

// orderLine is one <order> element: an order header repeated per SKU line.
type orderLine struct {
	OrderID       *string `xml:"order_id"`
	MobileNumber  *string `xml:"mobile_number"`
	OrderDateTime *string `xml:"order_date_time"`
	SKUID         *string `xml:"sku_id"`
	SKUCount      *string `xml:"sku_count"`
	TotalAmount   *string `xml:"total_amount"`
}

func (o *orderLine) missing() []string {
	var out []string
	for _, f := range []struct {
		name string
		v    *string
	}{
		{"order_id", o.OrderID},
		{"mobile_number", o.MobileNumber},
		{"order_date_time", o.OrderDateTime},
		{"sku_id", o.SKUID},
		{"sku_count", o.SKUCount},
		{"total_amount", o.TotalAmount},
	} {
		if f.v == nil {
			out = append(out, f.name)
		}
	}
	return out
}

func text(p *string) string {
	return strings.TrimSpace(*p)
}

// LoadOrders reads the orders XML and splits it into unique orders and
// order items. The first line of an order supplies its header fields; item
// ids are assigned 1..N in file order.
func (l *Loader) LoadOrders(path string) ([]core.Order, []core.OrderItem, error) {
	const op = "load orders"

	f, err := openSource(op, path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	orders, items, err := l.readOrders(f)
	if err != nil {
		return nil, nil, err
	}

	l.Logger.Info("orders loaded",
		slog.String("path", path),
		slog.Int("orders", len(orders)),
		slog.Int("items", len(items)),
	)
	return orders, items, nil
}

func (l *Loader) readOrders(r io.Reader) ([]core.Order, []core.OrderItem, error) {
	const op = "load orders"

	dec := xml.NewDecoder(r)
	lines := make(map[string]int64)
	var orders []core.Order
	var items []core.OrderItem
	sawRoot := false
	n := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, core.SchemaViolation(op, "malformed xml: %v", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !sawRoot {
			sawRoot = true
			if start.Name.Local != "orders" {
				return nil, nil, core.SchemaViolation(op, "root element is <%s>, expected <orders>", start.Name.Local)
			}
			continue
		}
		if start.Name.Local != "order" {
			if err := dec.Skip(); err != nil {
				return nil, nil, core.SchemaViolation(op, "malformed xml: %v", err)
			}
			continue
		}

		n++
		var line orderLine
		if err := dec.DecodeElement(&line, &start); err != nil {
			return nil, nil, core.SchemaViolation(op, "order %d: %v", n, err)
		}
		if miss := line.missing(); len(miss) > 0 {
			return nil, nil, core.SchemaViolation(op, "order %d: %s", n, formatMissing(miss))
		}

		orderID := text(line.OrderID)
		placed, err := ParseTimestamp(text(line.OrderDateTime), l.Location)
		if err != nil {
			return nil, nil, core.SchemaViolation(op, "order %s: %v", orderID, err)
		}
		count, err := strconv.ParseInt(text(line.SKUCount), 10, 64)
		if err != nil {
			return nil, nil, core.SchemaViolation(op, "order %s: invalid sku_count %q", orderID, text(line.SKUCount))
		}
		amount, err := decimal.NewFromString(text(line.TotalAmount))
		if err != nil {
			return nil, nil, core.SchemaViolation(op, "order %s: invalid total_amount %q", orderID, text(line.TotalAmount))
		}

		if lines[orderID] == 0 {
			orders = append(orders, core.Order{
				OrderID:       orderID,
				MobileNumber:  text(line.MobileNumber),
				OrderDateTime: placed,
				TotalAmount:   amount,
			})
		}
		lines[orderID]++
		items = append(items, core.OrderItem{
			OrderID:  orderID,
			LineNo:   lines[orderID],
			SKUID:    text(line.SKUID),
			SKUCount: count,
		})
	}

	if !sawRoot {
		return nil, nil, core.SchemaViolation(op, "empty document, expected <orders>")
	}
	return orders, items, nil
}
