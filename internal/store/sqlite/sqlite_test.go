package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store/storetest"
)

func newTestStore(t *testing.T, path string) store.Repository {
	t.Helper()
	s, err := New(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Repository {
		return newTestStore(t, filepath.Join(t.TempDir(), "shop.db"))
	})
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shop.db")

	first, err := New(ctx, path)
	require.NoError(t, err)
	product, err := first.CreateProduct(ctx, domain.Product{
		Name:          "HDMI Adapter",
		SKU:           "ADP-HDMI-01",
		PurchasePrice: decimal.RequireFromString("350.25"),
		SellingPrice:  decimal.RequireFromString("550.75"),
		Stock:         4,
	})
	require.NoError(t, err)
	sale, err := first.CreateSale(ctx, domain.SaleDraft{
		Customer: domain.NewCustomer("Ali", "0300-1111111", "Lahore"),
		SoldAt:   time.Date(2024, 5, 1, 21, 7, 0, 0, time.Local),
		Lines:    []domain.CartLine{{ProductID: product.ID, Qty: 2}},
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newTestStore(t, path)
	reloaded, err := second.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Stock)
	assert.Equal(t, "350.25", reloaded.PurchasePrice.StringFixed(2))

	stored, err := second.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "1101.50", stored.TotalAmount.StringFixed(2))
	assert.Equal(t, "401.00", stored.TotalProfit.StringFixed(2))
	assert.Equal(t, "2024-05-01 21:07", stored.SoldAt.Format(domain.SaleTimeLayout))
}

func TestReadOnlyOpenRejectsWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shop.db")
	newTestStore(t, path)

	db, err := Open(path, true)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count))
	assert.Zero(t, count)

	_, err = db.ExecContext(ctx, `INSERT INTO products (name, purchase_price_cents, selling_price_cents, stock) VALUES ('x', 1, 1, 1)`)
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "shop.db"), false)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, `CREATE TABLE t (sku TEXT UNIQUE)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO t (sku) VALUES ('A')`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO t (sku) VALUES ('A')`)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
	assert.False(t, isUniqueViolation(errors.New("UNIQUE constraint failed")))
}
