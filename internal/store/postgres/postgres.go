package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store/sqlstore"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		sku TEXT UNIQUE,
		category TEXT NOT NULL DEFAULT '',
		purchase_price_cents BIGINT NOT NULL CHECK (purchase_price_cents >= 0),
		selling_price_cents BIGINT NOT NULL CHECK (selling_price_cents >= 0),
		stock INTEGER NOT NULL CHECK (stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id BIGSERIAL PRIMARY KEY,
		customer_name TEXT NOT NULL DEFAULT '',
		customer_phone TEXT NOT NULL DEFAULT '',
		customer_address TEXT NOT NULL DEFAULT '',
		sold_at TEXT NOT NULL,
		total_amount_cents BIGINT NOT NULL,
		total_profit_cents BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id BIGSERIAL PRIMARY KEY,
		sale_id BIGINT NOT NULL REFERENCES sales(id),
		product_id BIGINT NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		price_each_cents BIGINT NOT NULL,
		subtotal_cents BIGINT NOT NULL,
		profit_cents BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_sold_at ON sales(sold_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_product ON sale_items(product_id)`,
}

// Dialect locks the product rows a sale touches with FOR UPDATE under
// READ COMMITTED; concurrent sales of the same product queue on the row lock.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:              "postgres",
		Placeholder:       sqlstore.DollarPlaceholder,
		Schema:            schema,
		LockSuffix:        " FOR UPDATE",
		TxOptions:         &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		IsUniqueViolation: isUniqueViolation,
	}
}

func New(ctx context.Context, databaseURL string) (*sqlstore.Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
