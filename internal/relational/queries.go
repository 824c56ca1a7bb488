package relational

import (
	"fmt"

	"github.com/leapstack-labs/leapkpi/pkg/dialect"
)

// Every ORDER BY ends on a unique key so ties resolve the same way as in
// the in-memory engine. Money is ordered after rounding to cents.

const repeatCustomersSQL = `
SELECT
	c.customer_id,
	COALESCE(c.customer_name, ''),
	c.mobile_number,
	COALESCE(c.region, ''),
	COUNT(DISTINCT o.order_id) AS order_count,
	SUM(o.total_amount) AS total_spent
FROM customers c
JOIN orders o ON o.mobile_number = c.mobile_number
GROUP BY c.customer_id, c.customer_name, c.mobile_number, c.region
HAVING COUNT(DISTINCT o.order_id) > 1
ORDER BY order_count DESC, ROUND(SUM(o.total_amount), 2) DESC, c.customer_id ASC`

// monthlyTrendsSQL counts item rows per order before joining so that each
// order's amount is summed once. Months come from the business-zone wall
// clock.
func monthlyTrendsSQL(d *dialect.Dialect) string {
	month := d.Month("o.order_local_time")
	return fmt.Sprintf(`
SELECT
	%s AS month,
	COUNT(DISTINCT o.order_id) AS order_count,
	SUM(COALESCE(ic.item_rows, 0)) AS total_items,
	SUM(o.total_amount) AS total_revenue,
	COUNT(DISTINCT o.mobile_number) AS unique_customers
FROM orders o
LEFT JOIN (
	SELECT order_id, COUNT(*) AS item_rows
	FROM order_items
	GROUP BY order_id
) ic ON ic.order_id = o.order_id
GROUP BY %s
ORDER BY month DESC`, month, month)
}

const regionalRevenueSQL = `
SELECT
	COALESCE(c.region, '') AS region,
	COUNT(DISTINCT c.customer_id) AS customer_count,
	COUNT(DISTINCT o.order_id) AS order_count,
	SUM(o.total_amount) AS total_revenue,
	MAX(o.total_amount) AS max_order_value
FROM orders o
JOIN customers c ON c.mobile_number = o.mobile_number
GROUP BY COALESCE(c.region, '')
ORDER BY ROUND(SUM(o.total_amount), 2) DESC, region ASC`

// topCustomersSQL filters the window before the join and aggregation. The
// window compares UTC wall clocks, which order the same way as instants.
func topCustomersSQL(topN int) string {
	return fmt.Sprintf(`
SELECT
	c.customer_id,
	COALESCE(c.customer_name, ''),
	c.mobile_number,
	COALESCE(c.region, ''),
	COUNT(DISTINCT o.order_id) AS order_count,
	SUM(o.total_amount) AS total_spent,
	MAX(o.order_date_time) AS last_order_date,
	MIN(o.order_date_time) AS first_order_date
FROM (
	SELECT order_id, mobile_number, order_date_time, total_amount
	FROM orders
	WHERE order_date_time >= ?
) o
JOIN customers c ON c.mobile_number = o.mobile_number
GROUP BY c.customer_id, c.customer_name, c.mobile_number, c.region
ORDER BY ROUND(SUM(o.total_amount), 2) DESC, c.customer_id ASC
LIMIT %d`, topN)
}
