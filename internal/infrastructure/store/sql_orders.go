package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/chat-storefront/internal/domain/history"
	"github.com/example/chat-storefront/internal/domain/order"
	"github.com/example/chat-storefront/internal/purchase"
)

// SQLOrders implements order.Store.
type SQLOrders struct {
	db *DB
}

func NewSQLOrders(db *DB) *SQLOrders {
	return &SQLOrders{db: db}
}

const orderColumns = `id, customer_id, status, total, items, created_at, updated_at, paid_at, fulfilled_at`

func (s *SQLOrders) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	_, err = s.db.exec(ctx,
		`INSERT INTO orders (id, vendor_id, customer_id, status, total, items, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, s.db.vendorID, o.CustomerID, string(o.Status), o.Total, string(items), o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (s *SQLOrders) Get(ctx context.Context, id string) (*order.Order, error) {
	row := s.db.queryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? AND vendor_id = ?`,
		id, s.db.vendorID,
	)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	return o, err
}

func (s *SQLOrders) List(ctx context.Context) ([]order.Order, error) {
	rows, err := s.db.query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE vendor_id = ? ORDER BY created_at ASC, id ASC`,
		s.db.vendorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (s *SQLOrders) LatestPending(ctx context.Context, customerID string) (*order.Order, error) {
	row := s.db.queryRow(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE vendor_id = ? AND customer_id = ? AND status = ?
		 ORDER BY created_at DESC LIMIT 1`,
		s.db.vendorID, customerID, string(order.StatusPending),
	)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	return o, err
}

func (s *SQLOrders) TransitionStatus(ctx context.Context, id string, from, to order.Status, at time.Time) (bool, error) {
	query := `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND vendor_id = ? AND status = ?`
	switch to {
	case order.StatusPaid:
		query = `UPDATE orders SET status = ?, updated_at = ?, paid_at = ? WHERE id = ? AND vendor_id = ? AND status = ?`
	case order.StatusFulfilled:
		query = `UPDATE orders SET status = ?, updated_at = ?, fulfilled_at = ? WHERE id = ? AND vendor_id = ? AND status = ?`
	}

	args := []any{string(to), at}
	if to == order.StatusPaid || to == order.StatusFulfilled {
		args = append(args, at)
	}
	args = append(args, id, s.db.vendorID, string(from))

	res, err := s.db.exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o           order.Order
		status      string
		items       string
		paidAt      sql.NullTime
		fulfilledAt sql.NullTime
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &status, &o.Total, &items,
		&o.CreatedAt, &o.UpdatedAt, &paidAt, &fulfilledAt); err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, fmt.Errorf("decode items of order %s: %w", o.ID, err)
	}
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	if fulfilledAt.Valid {
		t := fulfilledAt.Time
		o.FulfilledAt = &t
	}
	return &o, nil
}

// SQLHistory implements history.Store. Appending the same order, kind and
// product twice keeps the first entry.
type SQLHistory struct {
	db *DB
}

func NewSQLHistory(db *DB) *SQLHistory {
	return &SQLHistory{db: db}
}

func (s *SQLHistory) Append(ctx context.Context, e history.Entry) error {
	_, err := s.db.exec(ctx,
		`INSERT INTO customer_history (order_id, kind, vendor_id, customer_id, product_id, product_name, quantity, amount, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (order_id, kind, product_id) DO NOTHING`,
		e.OrderID, string(e.Kind), s.db.vendorID, e.CustomerID, e.ProductID, e.ProductName, e.Quantity, e.Amount, e.RecordedAt,
	)
	return err
}

func (s *SQLHistory) ListByCustomer(ctx context.Context, customerID string) ([]history.Entry, error) {
	rows, err := s.db.query(ctx,
		`SELECT kind, customer_id, order_id, product_id, product_name, quantity, amount, recorded_at
		 FROM customer_history WHERE vendor_id = ? AND customer_id = ?
		 ORDER BY recorded_at ASC`,
		s.db.vendorID, customerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		var (
			e    history.Entry
			kind string
		)
		if err := rows.Scan(&kind, &e.CustomerID, &e.OrderID, &e.ProductID, &e.ProductName,
			&e.Quantity, &e.Amount, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Kind = history.Kind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SQLIntentLog implements purchase.IntentLog.
type SQLIntentLog struct {
	db *DB
}

func NewSQLIntentLog(db *DB) *SQLIntentLog {
	return &SQLIntentLog{db: db}
}

func (s *SQLIntentLog) Begin(ctx context.Context, in *purchase.Intent) error {
	_, err := s.db.exec(ctx,
		`INSERT INTO purchase_intents (id, vendor_id, customer_id, product_id, quantity, order_id, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, s.db.vendorID, in.CustomerID, in.ProductID, in.Quantity, in.OrderID,
		string(in.State), in.CreatedAt, in.UpdatedAt,
	)
	return err
}

func (s *SQLIntentLog) Mark(ctx context.Context, id string, state purchase.IntentState, orderID string) error {
	var (
		res sql.Result
		err error
		now = time.Now().UTC()
	)
	if orderID != "" {
		res, err = s.db.exec(ctx,
			`UPDATE purchase_intents SET state = ?, order_id = ?, updated_at = ? WHERE id = ? AND vendor_id = ?`,
			string(state), orderID, now, id, s.db.vendorID)
	} else {
		res, err = s.db.exec(ctx,
			`UPDATE purchase_intents SET state = ?, updated_at = ? WHERE id = ? AND vendor_id = ?`,
			string(state), now, id, s.db.vendorID)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return purchase.ErrIntentNotFound
	}
	return nil
}

func (s *SQLIntentLog) Open(ctx context.Context) ([]purchase.Intent, error) {
	rows, err := s.db.query(ctx,
		`SELECT id, customer_id, product_id, quantity, order_id, state, created_at, updated_at
		 FROM purchase_intents WHERE vendor_id = ? AND state NOT IN (?, ?)
		 ORDER BY created_at ASC`,
		s.db.vendorID, string(purchase.IntentCompleted), string(purchase.IntentCompensated),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	intents := make([]purchase.Intent, 0)
	for rows.Next() {
		var (
			in    purchase.Intent
			state string
		)
		if err := rows.Scan(&in.ID, &in.CustomerID, &in.ProductID, &in.Quantity,
			&in.OrderID, &state, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, err
		}
		in.State = purchase.IntentState(state)
		intents = append(intents, in)
	}
	return intents, rows.Err()
}
