package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/chat-storefront/internal/domain/catalog"
)

// SQLCatalog implements catalog.Store on PostgreSQL or SQLite.
type SQLCatalog struct {
	db *DB
}

func NewSQLCatalog(db *DB) *SQLCatalog {
	return &SQLCatalog{db: db}
}

const productColumns = `id, name, price, stock_level, tags, description, category, created_at, updated_at`

func (s *SQLCatalog) Create(ctx context.Context, p *catalog.Product) error {
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.exec(ctx,
		`INSERT INTO products (id, vendor_id, name, price, stock_level, tags, description, category, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, s.db.vendorID, p.Name, p.Price, p.StockLevel, string(tags),
		p.Description, p.Category, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *SQLCatalog) Get(ctx context.Context, id string) (*catalog.Product, error) {
	row := s.db.queryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ? AND vendor_id = ?`,
		id, s.db.vendorID,
	)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLCatalog) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.db.query(ctx,
		`SELECT `+productColumns+` FROM products WHERE vendor_id = ? ORDER BY created_at ASC, id ASC`,
		s.db.vendorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// ConditionalDecrement runs the stock check and the decrement as one
// UPDATE, so concurrent buyers cannot both pass the check.
func (s *SQLCatalog) ConditionalDecrement(ctx context.Context, id string, qty int) (bool, error) {
	if qty <= 0 {
		return false, catalog.ErrInvalidQuantity
	}

	res, err := s.db.exec(ctx,
		`UPDATE products SET stock_level = stock_level - ?, updated_at = ?
		 WHERE id = ? AND vendor_id = ? AND stock_level >= ?`,
		qty, time.Now().UTC(), id, s.db.vendorID, qty,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *SQLCatalog) Restock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return catalog.ErrInvalidQuantity
	}

	res, err := s.db.exec(ctx,
		`UPDATE products SET stock_level = stock_level + ?, updated_at = ?
		 WHERE id = ? AND vendor_id = ?`,
		qty, time.Now().UTC(), id, s.db.vendorID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

var errNotReserved = errors.New("stock condition not met")

// Reserve inserts the reservation row and takes the stock in one
// transaction. An existing row means an earlier call already committed.
func (s *SQLCatalog) Reserve(ctx context.Context, reservationID, id string, qty int) (bool, error) {
	if qty <= 0 {
		return false, catalog.ErrInvalidQuantity
	}

	err := s.db.inTx(ctx, func(tx sqlTx) error {
		now := time.Now().UTC()
		res, err := tx.exec(ctx,
			`INSERT INTO stock_reservations (id, vendor_id, product_id, quantity, created_at)
			 VALUES (?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
			reservationID, s.db.vendorID, id, qty, now,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil // reserved by an earlier call
		}

		res, err = tx.exec(ctx,
			`UPDATE products SET stock_level = stock_level - ?, updated_at = ?
			 WHERE id = ? AND vendor_id = ? AND stock_level >= ?`,
			qty, now, id, s.db.vendorID, qty,
		)
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		if n != 1 {
			return errNotReserved
		}
		return nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errNotReserved):
		if _, err := s.Get(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	default:
		return false, err
	}
}

// Release marks the reservation released and returns its stock in one
// transaction.
func (s *SQLCatalog) Release(ctx context.Context, reservationID string) error {
	return s.db.inTx(ctx, func(tx sqlTx) error {
		now := time.Now().UTC()
		var (
			productID string
			qty       int
		)
		err := tx.queryRow(ctx,
			`UPDATE stock_reservations SET released_at = ?
			 WHERE id = ? AND vendor_id = ? AND released_at IS NULL
			 RETURNING product_id, quantity`,
			now, reservationID, s.db.vendorID,
		).Scan(&productID, &qty)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		res, err := tx.exec(ctx,
			`UPDATE products SET stock_level = stock_level + ?, updated_at = ?
			 WHERE id = ? AND vendor_id = ?`,
			qty, now, productID, s.db.vendorID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return catalog.ErrProductNotFound
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*catalog.Product, error) {
	var (
		p    catalog.Product
		tags string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.StockLevel, &tags,
		&p.Description, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of product %s: %w", p.ID, err)
	}
	return &p, nil
}
