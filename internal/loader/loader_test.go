package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapkpi/internal/testutil"
	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const customersCSV = `customer_id,customer_name,mobile_number,region
C1, Asha ,9000000001,North
C2,,9000000002,
,Nobody,9000000003,East
C4,No Phone,,West
C1,Asha K,9000000001,North
`

const ordersXML = `<?xml version="1.0" encoding="UTF-8"?>
<orders>
  <order>
    <order_id>O1</order_id>
    <mobile_number>9000000001</mobile_number>
    <order_date_time>2024-06-10T10:00:00</order_date_time>
    <sku_id>SKU-1</sku_id>
    <sku_count>2</sku_count>
    <total_amount>100.00</total_amount>
  </order>
  <order>
    <order_id>O1</order_id>
    <mobile_number>9999999999</mobile_number>
    <order_date_time>2024-01-01T00:00:00</order_date_time>
    <sku_id>SKU-2</sku_id>
    <sku_count>1</sku_count>
    <total_amount>1.00</total_amount>
  </order>
  <order>
    <order_id>O2</order_id>
    <mobile_number>9000000002</mobile_number>
    <order_date_time>2024-05-31T20:00:00Z</order_date_time>
    <sku_id>SKU-3</sku_id>
    <sku_count>5</sku_count>
    <total_amount>250.50</total_amount>
  </order>
</orders>
`

func TestLoad(t *testing.T) {
	loc := testutil.Kolkata(t)
	dir := t.TempDir()
	l := New(loc, testutil.NewTestLogger(t))

	src, err := l.Load(writeFile(t, dir, "customers.csv", customersCSV), writeFile(t, dir, "orders.xml", ordersXML))
	require.NoError(t, err)

	t.Run("customers", func(t *testing.T) {
		require.Len(t, src.Customers, 3)
		assert.Equal(t, core.Customer{CustomerID: "C1", CustomerName: "Asha", MobileNumber: "9000000001", Region: "North"}, src.Customers[0])
		assert.Equal(t, core.Customer{CustomerID: "C2", CustomerName: "Unknown", MobileNumber: "9000000002", Region: "Unknown"}, src.Customers[1])
		assert.Equal(t, "Asha K", src.Customers[2].CustomerName)
	})

	t.Run("dropped rows are reported", func(t *testing.T) {
		require.Len(t, src.Warnings, 1)
		assert.Equal(t, core.WarnDroppedRow, src.Warnings[0].Code)
		assert.Equal(t, 2, src.Warnings[0].Count)
	})

	t.Run("first line supplies order header", func(t *testing.T) {
		require.Len(t, src.Orders, 2)
		o1 := src.Orders[0]
		assert.Equal(t, "O1", o1.OrderID)
		assert.Equal(t, "9000000001", o1.MobileNumber)
		assert.True(t, o1.OrderDateTime.Equal(time.Date(2024, 6, 10, 10, 0, 0, 0, loc)))
		assert.Equal(t, "100", o1.TotalAmount.String())
	})

	t.Run("offset timestamps keep their instant", func(t *testing.T) {
		o2 := src.Orders[1]
		assert.True(t, o2.OrderDateTime.Equal(time.Date(2024, 5, 31, 20, 0, 0, 0, time.UTC)))
		assert.Equal(t, "2024-06", o2.OrderDateTime.In(loc).Format("2006-01"))
	})

	t.Run("items numbered within their order", func(t *testing.T) {
		require.Len(t, src.OrderItems, 3)
		want := []core.ItemKey{{OrderID: "O1", LineNo: 1}, {OrderID: "O1", LineNo: 2}, {OrderID: "O2", LineNo: 1}}
		for i, it := range src.OrderItems {
			assert.Equal(t, want[i], it.Key())
		}
		assert.Equal(t, core.OrderItem{OrderID: "O1", LineNo: 2, SKUID: "SKU-2", SKUCount: 1}, src.OrderItems[1])
	})

	t.Run("dataset applies last write wins", func(t *testing.T) {
		ds := src.Dataset()
		require.Len(t, ds.Customers, 2)
		assert.Equal(t, "Asha K", ds.Customers[0].CustomerName)
		assert.Len(t, src.Raw().Customers, 3)
	})
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	l := New(time.UTC, nil)

	_, err := l.Load(filepath.Join(dir, "nope.csv"), filepath.Join(dir, "nope.xml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)

	_, err = l.Load(writeFile(t, dir, "customers.csv", customersCSV), filepath.Join(dir, "nope.xml"))
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestReadCustomersSchema(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "empty", input: "", wantErr: "empty file"},
		{name: "missing region", input: "customer_id,customer_name,mobile_number\nC1,A,9000000001\n", wantErr: "region"},
		{name: "header only", input: "customer_id,customer_name,mobile_number,region\n"},
		{name: "reordered columns", input: "region,mobile_number,customer_name,customer_id\nNorth,9000000001,A,C1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := readCustomers(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, core.ErrSchemaViolation)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if strings.Count(tt.input, "\n") > 1 {
				require.Len(t, got, 1)
				assert.Equal(t, "C1", got[0].CustomerID)
				assert.Equal(t, "North", got[0].Region)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestReadOrdersSchema(t *testing.T) {
	line := func(fields string) string { return "<orders><order>" + fields + "</order></orders>" }
	full := "<order_id>O1</order_id><mobile_number>9000000001</mobile_number>" +
		"<order_date_time>2024-06-10 10:00:00</order_date_time><sku_id>S</sku_id>" +
		"<sku_count>1</sku_count><total_amount>10.5</total_amount>"

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "valid", input: line(full)},
		{name: "empty root", input: "<orders></orders>"},
		{name: "empty document", input: "", wantErr: "empty document"},
		{name: "wrong root", input: "<items></items>", wantErr: "<items>"},
		{name: "malformed", input: "<orders><order>", wantErr: "order 1"},
		{name: "missing field", input: line(strings.Replace(full, "<sku_id>S</sku_id>", "", 1)), wantErr: "sku_id"},
		{name: "bad count", input: line(strings.Replace(full, "<sku_count>1<", "<sku_count>x<", 1)), wantErr: "sku_count"},
		{name: "bad amount", input: line(strings.Replace(full, "10.5", "ten", 1)), wantErr: "total_amount"},
		{name: "bad timestamp", input: line(strings.Replace(full, "2024-06-10 10:00:00", "yesterday", 1)), wantErr: "timestamp"},
	}

	l := New(time.UTC, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := l.readOrders(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, core.ErrSchemaViolation)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	loc := testutil.Kolkata(t)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-06-01T00:30:00", time.Date(2024, 6, 1, 0, 30, 0, 0, loc)},
		{"2024-06-01 00:30:00.250", time.Date(2024, 6, 1, 0, 30, 0, 250_000_000, loc)},
		{"2024-06-01T00:30:00+05:30", time.Date(2024, 6, 1, 0, 30, 0, 0, loc)},
		{"2024-05-31T19:00:00Z", time.Date(2024, 6, 1, 0, 30, 0, 0, loc)},
		{"2024-06-01", time.Date(2024, 6, 1, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in, loc)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseTimestamp("", loc)
	assert.Error(t, err)
}
