package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DB wraps a *sql.DB with the dialect needed to rebind placeholders and the
// vendor every row belongs to.
type DB struct {
	*sql.DB
	dialect  Dialect
	vendorID string
}

// Open connects to dsn and applies migrations. postgres:// and postgresql://
// use lib/pq; sqlite://<path>, file: and :memory: use the embedded SQLite
// driver.
func Open(ctx context.Context, dsn, vendorID string) (*DB, error) {
	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialect = DialectPostgres
		db, err = ConnectPostgres(dsn)
	default:
		dialect = DialectSQLite
		db, err = connectSQLite(strings.TrimPrefix(dsn, "sqlite://"))
	}
	if err != nil {
		return nil, err
	}

	d := &DB{DB: db, dialect: dialect, vendorID: vendorID}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return d, nil
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func connectSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps an in-memory
	// database alive across goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Dialect() Dialect { return d.dialect }

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (d *DB) rebind(query string) string {
	if d.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.ExecContext(ctx, d.rebind(query), args...)
}

func (d *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.QueryContext(ctx, d.rebind(query), args...)
}

func (d *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.QueryRowContext(ctx, d.rebind(query), args...)
}

// sqlTx rebinds placeholders like DB does.
type sqlTx struct {
	*sql.Tx
	db *DB
}

func (t sqlTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.ExecContext(ctx, t.db.rebind(query), args...)
}

func (t sqlTx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.QueryRowContext(ctx, t.db.rebind(query), args...)
}

// inTx runs fn in a transaction. It commits when fn returns nil and rolls
// back otherwise; fn's error is returned as is.
func (d *DB) inTx(ctx context.Context, fn func(tx sqlTx) error) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(sqlTx{Tx: tx, db: d}); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			vendor_id TEXT NOT NULL,
			name TEXT NOT NULL,
			price BIGINT NOT NULL,
			stock_level INTEGER NOT NULL CHECK (stock_level >= 0),
			tags TEXT NOT NULL DEFAULT '[]',
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_vendor ON products(vendor_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			vendor_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			status TEXT NOT NULL,
			total BIGINT NOT NULL,
			items TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			paid_at TIMESTAMP NULL,
			fulfilled_at TIMESTAMP NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(vendor_id, customer_id, status, created_at)`,
		`CREATE TABLE IF NOT EXISTS customer_history (
			order_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			vendor_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			amount BIGINT NOT NULL,
			recorded_at TIMESTAMP NOT NULL,
			PRIMARY KEY (order_id, kind, product_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_customer ON customer_history(vendor_id, customer_id, recorded_at)`,
		`CREATE TABLE IF NOT EXISTS purchase_intents (
			id TEXT PRIMARY KEY,
			vendor_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			order_id TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_intents_state ON purchase_intents(vendor_id, state)`,
		`CREATE TABLE IF NOT EXISTS stock_reservations (
			id TEXT PRIMARY KEY,
			vendor_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			released_at TIMESTAMP NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
