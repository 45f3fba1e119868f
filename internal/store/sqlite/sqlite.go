package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store/sqlstore"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		sku TEXT UNIQUE,
		category TEXT NOT NULL DEFAULT '',
		purchase_price_cents INTEGER NOT NULL CHECK (purchase_price_cents >= 0),
		selling_price_cents INTEGER NOT NULL CHECK (selling_price_cents >= 0),
		stock INTEGER NOT NULL CHECK (stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_name TEXT NOT NULL DEFAULT '',
		customer_phone TEXT NOT NULL DEFAULT '',
		customer_address TEXT NOT NULL DEFAULT '',
		sold_at TEXT NOT NULL,
		total_amount_cents INTEGER NOT NULL,
		total_profit_cents INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_id INTEGER NOT NULL REFERENCES sales(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		price_each_cents INTEGER NOT NULL,
		subtotal_cents INTEGER NOT NULL,
		profit_cents INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_sold_at ON sales(sold_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_product ON sale_items(product_id)`,
}

func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:              "sqlite",
		Schema:            schema,
		IsUniqueViolation: isUniqueViolation,
	}
}

// New opens (creating if needed) the database file at path and bootstraps the schema.
// A single connection serializes writers, which is what makes the sale
// transaction exclusive on this engine.
func New(ctx context.Context, path string) (*sqlstore.Store, error) {
	db, err := Open(path, false)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := sqlstore.New(db, Dialect())
	if err := st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// Open returns a handle on the file at path with foreign keys, WAL and a busy
// timeout enabled. readOnly opens the file without write access.
func Open(path string, readOnly bool) (*sql.DB, error) {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	if readOnly {
		params.Set("mode", "ro")
	} else {
		params.Add("_pragma", "journal_mode(WAL)")
	}

	db, err := sql.Open("sqlite", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE")
}
