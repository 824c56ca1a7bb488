package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/leapstack-labs/leapkpi/pkg/dialect"
)

// MergeResult reports what a merge wrote.
type MergeResult struct {
	CustomersInserted int
	CustomersUpdated  int
	OrdersInserted    int
	OrdersUpdated     int
	ItemsInserted     int
	ItemsReplaced     int64
}

// upsert is a pair of statements keyed on a primary key. The update binds the
// key last so both statements share the argument order of insertArgs.
type upsert struct {
	update *sql.Stmt
	insert *sql.Stmt
}

func prepareUpsert(ctx context.Context, tx *sql.Tx, d *dialect.Dialect, table, key string, cols []string) (*upsert, error) {
	set := ""
	for i, c := range cols {
		if i > 0 {
			set += ", "
		}
		set += c + " = ?"
	}
	upd, err := tx.PrepareContext(ctx, d.Rebind(fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, set, key)))
	if err != nil {
		return nil, fmt.Errorf("prepare update %s: %w", table, err)
	}

	all := append([]string{key}, cols...)
	marks := ""
	names := ""
	for i, c := range all {
		if i > 0 {
			marks += ", "
			names += ", "
		}
		marks += "?"
		names += c
	}
	ins, err := tx.PrepareContext(ctx, d.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, names, marks)))
	if err != nil {
		_ = upd.Close()
		return nil, fmt.Errorf("prepare insert %s: %w", table, err)
	}
	return &upsert{update: upd, insert: ins}, nil
}

// apply writes one row with last-write-wins on the non-key columns. It
// reports whether the row was inserted.
func (u *upsert) apply(ctx context.Context, key any, vals ...any) (bool, error) {
	res, err := u.update.ExecContext(ctx, append(vals, key)...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := u.insert.ExecContext(ctx, append([]any{key}, vals...)...); err != nil {
		return false, err
	}
	return true, nil
}

func (u *upsert) close() {
	_ = u.update.Close()
	_ = u.insert.Close()
}

// Merge writes a dataset into the store in one transaction.
//
// Customers and orders are merged on their primary keys with last-write-wins
// on the other columns. The items of every merged order are deleted and the
// dataset's items inserted, so an order's lines always come from the latest
// batch that carried the order. Merging the same dataset twice leaves the
// tables unchanged.
func (s *Store) Merge(ctx context.Context, ds *core.Dataset) (*MergeResult, error) {
	tx, err := s.adp.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	res, err := s.merge(ctx, tx, ds)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", slog.String("error", rbErr.Error()))
		}
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("merge: commit: %w", err)
	}

	s.logger.Info("dataset merged",
		slog.Int("customers_inserted", res.CustomersInserted),
		slog.Int("customers_updated", res.CustomersUpdated),
		slog.Int("orders_inserted", res.OrdersInserted),
		slog.Int("orders_updated", res.OrdersUpdated),
		slog.Int("items_inserted", res.ItemsInserted),
		slog.Int64("items_replaced", res.ItemsReplaced),
	)
	return res, nil
}

func (s *Store) merge(ctx context.Context, tx *sql.Tx, ds *core.Dataset) (*MergeResult, error) {
	d := s.adp.Dialect()
	res := &MergeResult{}

	customers, err := prepareUpsert(ctx, tx, d, TableCustomers, "customer_id",
		[]string{"customer_name", "mobile_number", "region"})
	if err != nil {
		return nil, err
	}
	defer customers.close()

	for _, c := range ds.Customers {
		inserted, err := customers.apply(ctx, c.CustomerID, c.CustomerName, c.MobileNumber, c.Region)
		if err != nil {
			return nil, fmt.Errorf("customer %s: %w", c.CustomerID, err)
		}
		if inserted {
			res.CustomersInserted++
		} else {
			res.CustomersUpdated++
		}
	}

	orders, err := prepareUpsert(ctx, tx, d, TableOrders, "order_id",
		[]string{"mobile_number", "order_date_time", "order_local_time", "total_amount"})
	if err != nil {
		return nil, err
	}
	defer orders.close()

	for _, o := range ds.Orders {
		inserted, err := orders.apply(ctx, o.OrderID, o.MobileNumber,
			d.EncodeTime(o.OrderDateTime, time.UTC), d.EncodeTime(o.OrderDateTime, s.loc), d.EncodeMoney(o.TotalAmount))
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", o.OrderID, err)
		}
		if inserted {
			res.OrdersInserted++
		} else {
			res.OrdersUpdated++
		}
	}

	del, err := tx.PrepareContext(ctx, d.Rebind("DELETE FROM "+TableOrderItems+" WHERE order_id = ?"))
	if err != nil {
		return nil, fmt.Errorf("prepare delete items: %w", err)
	}
	defer func() { _ = del.Close() }()

	for _, id := range itemOwners(ds) {
		r, err := del.ExecContext(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("clear items of %s: %w", id, err)
		}
		if n, err := r.RowsAffected(); err == nil {
			res.ItemsReplaced += n
		}
	}

	ins, err := tx.PrepareContext(ctx, d.Rebind("INSERT INTO "+TableOrderItems+" (order_id, line_no, sku_id, sku_count) VALUES (?, ?, ?, ?)"))
	if err != nil {
		return nil, fmt.Errorf("prepare insert items: %w", err)
	}
	defer func() { _ = ins.Close() }()

	for _, it := range ds.OrderItems {
		if _, err := ins.ExecContext(ctx, it.OrderID, it.LineNo, it.SKUID, it.SKUCount); err != nil {
			return nil, fmt.Errorf("order %s line %d: %w", it.OrderID, it.LineNo, err)
		}
		res.ItemsInserted++
	}

	return res, nil
}

// itemOwners lists the orders whose items a merge replaces: every merged order
// and every order an item of the dataset points at.
func itemOwners(ds *core.Dataset) []string {
	seen := make(map[string]bool, len(ds.Orders))
	var ids []string
	for _, o := range ds.Orders {
		if !seen[o.OrderID] {
			seen[o.OrderID] = true
			ids = append(ids, o.OrderID)
		}
	}
	for _, it := range ds.OrderItems {
		if !seen[it.OrderID] {
			seen[it.OrderID] = true
			ids = append(ids, it.OrderID)
		}
	}
	return ids
}
