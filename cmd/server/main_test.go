package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/config"
	sqlitestore "github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store/sqlite"
)

func TestValidateConfig(t *testing.T) {
	valid := config.Config{DatabaseDriver: config.DriverSQLite, SQLitePath: "shop.db", QuantityPolicy: "skip"}
	require.NoError(t, validateConfig(valid))

	tests := map[string]config.Config{
		"unknown driver":       {DatabaseDriver: "mysql", QuantityPolicy: "skip"},
		"postgres without url": {DatabaseDriver: config.DriverPostgres, QuantityPolicy: "skip"},
		"sqlite without path":  {DatabaseDriver: config.DriverSQLite, QuantityPolicy: "skip"},
		"bad quantity policy":  {DatabaseDriver: config.DriverMemory, QuantityPolicy: "clamp"},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func useSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	t.Setenv("DB_DRIVER", config.DriverSQLite)
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	return path
}

func TestMigrateCreatesSchema(t *testing.T) {
	path := useSQLite(t)

	root := newRootCmd()
	root.SetArgs([]string{"migrate"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	db, err := sqlitestore.Open(path, true)
	require.NoError(t, err)
	defer db.Close()
	for _, table := range []string{"products", "sales", "sale_items"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestMigrateRejectsMemoryDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", config.DriverMemory)
	t.Setenv("LOG_LEVEL", "error")

	root := newRootCmd()
	root.SetArgs([]string{"migrate"})
	assert.Error(t, root.ExecuteContext(context.Background()))
}

func TestImportLegacyCommand(t *testing.T) {
	target := useSQLite(t)

	legacyPath := filepath.Join(t.TempDir(), "old-shop.db")
	legacyDB, err := sqlitestore.Open(legacyPath, false)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE products (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, sku TEXT UNIQUE, category TEXT, purchase_price REAL NOT NULL, selling_price REAL NOT NULL, stock INTEGER NOT NULL)`,
		`CREATE TABLE sales (id INTEGER PRIMARY KEY AUTOINCREMENT, customer_name TEXT, date TEXT NOT NULL, total_amount REAL NOT NULL, total_profit REAL NOT NULL)`,
		`CREATE TABLE sale_items (id INTEGER PRIMARY KEY AUTOINCREMENT, sale_id INTEGER, product_id INTEGER, quantity INTEGER, price_each REAL, subtotal REAL, profit REAL)`,
		`INSERT INTO products (name, sku, purchase_price, selling_price, stock) VALUES ('USB Cable', 'CAB-1', 60, 100, 47)`,
		`INSERT INTO sales (customer_name, date, total_amount, total_profit) VALUES ('Ali|0300-1111111|Lahore', '2024-05-01 03:04 PM', 300, 120)`,
		`INSERT INTO sale_items (sale_id, product_id, quantity, price_each, subtotal, profit) VALUES (1, 1, 3, 100, 300, 120)`,
	} {
		_, err := legacyDB.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, legacyDB.Close())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"import-legacy", legacyPath})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Equal(t, "imported 1 products, 1 sales (1 items), skipped 0 sales\n", out.String())

	db, err := sqlitestore.Open(target, true)
	require.NoError(t, err)
	defer db.Close()
	var (
		customer string
		cents    int64
	)
	err = db.QueryRow(`SELECT customer_address, total_amount_cents FROM sales WHERE id = 1`).Scan(&customer, &cents)
	require.NoError(t, err)
	assert.Equal(t, "Lahore", customer)
	assert.Equal(t, int64(30000), cents)
}

func TestImportLegacyMissingFile(t *testing.T) {
	useSQLite(t)

	root := newRootCmd()
	root.SetArgs([]string{"import-legacy", filepath.Join(t.TempDir(), "nope.db")})
	assert.Error(t, root.ExecuteContext(context.Background()))
}
