// Package storetest holds the behaviour every store.Repository must share.
// Implementations call Run from their own tests with a fresh, empty repository
// per subtest.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store"
)

type Factory func(t *testing.T) store.Repository

func Run(t *testing.T, newRepo Factory) {
	t.Helper()

	t.Run("ProductLifecycle", func(t *testing.T) { testProductLifecycle(t, newRepo(t)) })
	t.Run("DuplicateSKU", func(t *testing.T) { testDuplicateSKU(t, newRepo(t)) })
	t.Run("ListViews", func(t *testing.T) { testListViews(t, newRepo(t)) })
	t.Run("SaleWritesHeaderItemsAndStock", func(t *testing.T) { testSaleWrites(t, newRepo(t)) })
	t.Run("InsufficientStockRollsBack", func(t *testing.T) { testInsufficientStock(t, newRepo(t)) })
	t.Run("UnknownProductRollsBack", func(t *testing.T) { testUnknownProduct(t, newRepo(t)) })
	t.Run("OversizedAmountsRejected", func(t *testing.T) { testOversizedAmounts(t, newRepo(t)) })
	t.Run("ConcurrentSalesNeverOversell", func(t *testing.T) { testConcurrentSales(t, newRepo(t)) })
	t.Run("ImportSaleLeavesStock", func(t *testing.T) { testImportSale(t, newRepo(t)) })
	t.Run("Reports", func(t *testing.T) { testReports(t, newRepo(t)) })
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func at(day string, clock string) time.Time {
	t, err := time.ParseInLocation(domain.SaleTimeLayout, day+" "+clock, time.Local)
	if err != nil {
		panic(err)
	}
	return t
}

func mustProduct(t *testing.T, repo store.Repository, name string, sku string, purchase string, selling string, stock int) domain.Product {
	t.Helper()
	p, err := repo.CreateProduct(context.Background(), domain.Product{
		Name:          name,
		SKU:           sku,
		PurchasePrice: dec(purchase),
		SellingPrice:  dec(selling),
		Stock:         stock,
	})
	require.NoError(t, err)
	return *p
}

func mustSale(t *testing.T, repo store.Repository, soldAt time.Time, lines ...domain.CartLine) domain.Sale {
	t.Helper()
	sale, err := repo.CreateSale(context.Background(), domain.SaleDraft{
		Customer: domain.NewCustomer("Walk-in", "", ""),
		SoldAt:   soldAt,
		Lines:    lines,
	})
	require.NoError(t, err)
	return *sale
}

func stockOf(t *testing.T, repo store.Repository, id int64) int {
	t.Helper()
	p, err := repo.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func testProductLifecycle(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	created := mustProduct(t, repo, "USB Cable", "CAB-1", "60", "100", 50)
	require.NotZero(t, created.ID)

	got, err := repo.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "USB Cable", got.Name)
	assert.Equal(t, "CAB-1", got.SKU)
	assert.True(t, got.SellingPrice.Equal(dec("100")))
	assert.Equal(t, 50, got.Stock)

	got.Name = "USB-C Cable"
	got.SellingPrice = dec("120.50")
	got.Stock = 40
	_, err = repo.UpdateProduct(ctx, *got)
	require.NoError(t, err)

	reloaded, err := repo.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "USB-C Cable", reloaded.Name)
	assert.True(t, reloaded.SellingPrice.Equal(dec("120.50")))
	assert.Equal(t, 40, reloaded.Stock)

	_, err = repo.GetProduct(ctx, created.ID+1000)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = repo.UpdateProduct(ctx, domain.Product{ID: created.ID + 1000, Name: "ghost"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDuplicateSKU(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	first := mustProduct(t, repo, "Mouse", "MOU-1", "400", "650", 5)
	second := mustProduct(t, repo, "Keyboard", "KEY-1", "3000", "4500", 5)

	_, err := repo.CreateProduct(ctx, domain.Product{Name: "Mouse copy", SKU: "MOU-1", PurchasePrice: dec("1"), SellingPrice: dec("2")})
	assert.ErrorIs(t, err, store.ErrDuplicateSKU)

	second.SKU = first.SKU
	_, err = repo.UpdateProduct(ctx, second)
	assert.ErrorIs(t, err, store.ErrDuplicateSKU)

	// Products without a SKU never collide.
	mustProduct(t, repo, "Sticker", "", "1", "2", 1)
	mustProduct(t, repo, "Sticker large", "", "1", "3", 1)
}

func testListViews(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	cable := mustProduct(t, repo, "USB Cable", "", "60", "100", 50)
	adapter := mustProduct(t, repo, "Adapter", "", "300", "500", 0)
	mouse := mustProduct(t, repo, "Mouse", "", "400", "650", 3)

	catalog, err := repo.ListProducts(ctx, domain.CatalogView)
	require.NoError(t, err)
	require.Len(t, catalog, 3)
	assert.Equal(t, []int64{mouse.ID, adapter.ID, cable.ID}, []int64{catalog[0].ID, catalog[1].ID, catalog[2].ID})

	forSale, err := repo.ListProducts(ctx, domain.SaleView)
	require.NoError(t, err)
	require.Len(t, forSale, 2)
	assert.Equal(t, "Mouse", forSale[0].Name)
	assert.Equal(t, "USB Cable", forSale[1].Name)
}

func testSaleWrites(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	cable := mustProduct(t, repo, "USB Cable", "CAB-1", "60", "100", 50)

	sale, err := repo.CreateSale(ctx, domain.SaleDraft{
		Customer: domain.NewCustomer("Ali", "0300-1111111", "Lahore"),
		SoldAt:   at("2024-05-01", "10:15"),
		Lines:    []domain.CartLine{{ProductID: cable.ID, Qty: 3}},
	})
	require.NoError(t, err)
	require.NotZero(t, sale.ID)
	assert.True(t, sale.TotalAmount.Equal(dec("300")), "total %s", sale.TotalAmount)
	assert.True(t, sale.TotalProfit.Equal(dec("120")), "profit %s", sale.TotalProfit)
	assert.Equal(t, 47, stockOf(t, repo, cable.ID))

	stored, err := repo.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Customer{Name: "Ali", Phone: "0300-1111111", Address: "Lahore"}, stored.Customer)
	assert.Equal(t, "2024-05-01 10:15", stored.SoldAt.Format(domain.SaleTimeLayout))
	require.Len(t, stored.Items, 1)
	item := stored.Items[0]
	assert.Equal(t, "USB Cable", item.ProductName)
	assert.Equal(t, "CAB-1", item.SKU)
	assert.Equal(t, 3, item.Quantity)
	assert.True(t, item.PriceEach.Equal(dec("100")))
	assert.True(t, item.Subtotal.Equal(dec("300")))
	assert.True(t, item.Profit.Equal(dec("120")))

	// Later price changes do not touch recorded sales.
	cable.SellingPrice = dec("150")
	cable.Stock = 47
	_, err = repo.UpdateProduct(ctx, cable)
	require.NoError(t, err)
	again, err := repo.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, again.TotalAmount.Equal(dec("300")))
	assert.True(t, again.Items[0].PriceEach.Equal(dec("100")))

	_, err = repo.GetSale(ctx, sale.ID+1000)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testInsufficientStock(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	cable := mustProduct(t, repo, "USB Cable", "", "60", "100", 10)
	mouse := mustProduct(t, repo, "Mouse", "", "400", "650", 2)

	_, err := repo.CreateSale(ctx, domain.SaleDraft{
		SoldAt: at("2024-05-01", "11:00"),
		Lines: []domain.CartLine{
			{ProductID: cable.ID, Qty: 4},
			{ProductID: mouse.ID, Qty: 3},
		},
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	var stockErr *store.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, mouse.ID, stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)

	assert.Equal(t, 10, stockOf(t, repo, cable.ID))
	assert.Equal(t, 2, stockOf(t, repo, mouse.ID))

	recent, err := repo.RecentSales(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func testOversizedAmounts(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	rack := mustProduct(t, repo, "Server Rack", "", "1000000000", "10000000000", 100)
	array := mustProduct(t, repo, "Storage Array", "", "1000000000", "10000000000", 100)

	_, err := repo.CreateProduct(ctx, domain.Product{Name: "Typo", PurchasePrice: dec("1"), SellingPrice: dec("100000000000000000")})
	require.ErrorIs(t, err, store.ErrValidation)
	oversized := rack
	oversized.SellingPrice = dec("100000000000000000")
	_, err = repo.UpdateProduct(ctx, oversized)
	require.ErrorIs(t, err, store.ErrValidation)

	for _, lines := range [][]domain.CartLine{
		{{ProductID: rack.ID, Qty: 11}},
		{{ProductID: rack.ID, Qty: 6}, {ProductID: array.ID, Qty: 5}},
	} {
		_, err = repo.CreateSale(ctx, domain.SaleDraft{SoldAt: at("2024-05-01", "11:00"), Lines: lines})
		require.ErrorIs(t, err, store.ErrValidation)
	}
	assert.Equal(t, 100, stockOf(t, repo, rack.ID))
	assert.Equal(t, 100, stockOf(t, repo, array.ID))

	_, err = repo.ImportSale(ctx, domain.Sale{
		SoldAt:      at("2023-12-30", "16:45"),
		TotalAmount: dec("100000000000000000"),
		TotalProfit: dec("0"),
		Items: []domain.SaleItem{{
			ProductID: rack.ID,
			Quantity:  1,
			PriceEach: dec("100000000000000000"),
			Subtotal:  dec("100000000000000000"),
			Profit:    dec("0"),
		}},
	})
	require.ErrorIs(t, err, store.ErrValidation)

	recent, err := repo.RecentSales(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, recent)

	sale := mustSale(t, repo, at("2024-05-01", "11:05"), domain.CartLine{ProductID: rack.ID, Qty: 10})
	assert.Equal(t, "100000000000.00", sale.TotalAmount.StringFixed(2))
	stored, err := repo.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "100000000000.00", stored.TotalAmount.StringFixed(2))
	assert.Equal(t, "90000000000.00", stored.TotalProfit.StringFixed(2))
}

func testUnknownProduct(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	cable := mustProduct(t, repo, "USB Cable", "", "60", "100", 10)

	_, err := repo.CreateSale(ctx, domain.SaleDraft{
		SoldAt: at("2024-05-01", "11:00"),
		Lines: []domain.CartLine{
			{ProductID: cable.ID, Qty: 1},
			{ProductID: cable.ID + 999, Qty: 1},
		},
	})
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 10, stockOf(t, repo, cable.ID))

	top, err := repo.TopProducts(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func testConcurrentSales(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	cable := mustProduct(t, repo, "USB Cable", "", "60", "100", 5)

	const buyers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateSale(ctx, domain.SaleDraft{
				SoldAt: at("2024-05-01", "12:00"),
				Lines:  []domain.CartLine{{ProductID: cable.ID, Qty: 1}},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, store.ErrInsufficientStock)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, stockOf(t, repo, cable.ID))
}

func testImportSale(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	cable := mustProduct(t, repo, "USB Cable", "", "60", "100", 10)

	imported, err := repo.ImportSale(ctx, domain.Sale{
		Customer:    domain.DecodeCustomer("Sara|0321-2222222|Karachi"),
		SoldAt:      at("2023-12-30", "16:45"),
		TotalAmount: dec("200"),
		TotalProfit: dec("80"),
		Items: []domain.SaleItem{{
			ProductID: cable.ID,
			Quantity:  2,
			PriceEach: dec("100"),
			Subtotal:  dec("200"),
			Profit:    dec("80"),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, stockOf(t, repo, cable.ID))

	stored, err := repo.GetSale(ctx, imported.ID)
	require.NoError(t, err)
	assert.Equal(t, "Karachi", stored.Customer.Address)
	assert.Equal(t, "2023-12-30 16:45", stored.SoldAt.Format(domain.SaleTimeLayout))

	_, err = repo.ImportSale(ctx, domain.Sale{SoldAt: at("2023-12-30", "16:45")})
	assert.ErrorIs(t, err, store.ErrEmptyCart)
}

func testReports(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	empty, err := repo.CatalogTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.ProductCount)
	assert.True(t, empty.StockValue.IsZero())
	noSales, err := repo.SalesTotals(ctx, "")
	require.NoError(t, err)
	assert.True(t, noSales.Revenue.IsZero())

	cable := mustProduct(t, repo, "USB Cable", "", "60", "100", 50)
	mouse := mustProduct(t, repo, "Mouse", "", "400", "650", 20)
	hub := mustProduct(t, repo, "USB Hub", "", "500", "800", 12)
	stand := mustProduct(t, repo, "Laptop Stand", "", "1100", "1600", 3)

	mustSale(t, repo, at("2024-05-01", "09:00"), domain.CartLine{ProductID: cable.ID, Qty: 2})
	mustSale(t, repo, at("2024-05-02", "10:30"), domain.CartLine{ProductID: mouse.ID, Qty: 1}, domain.CartLine{ProductID: hub.ID, Qty: 2})
	mustSale(t, repo, at("2024-05-02", "18:05"), domain.CartLine{ProductID: cable.ID, Qty: 1})
	mustSale(t, repo, at("2024-05-03", "08:00"), domain.CartLine{ProductID: mouse.ID, Qty: 2})
	last := mustSale(t, repo, at("2024-05-03", "13:20"), domain.CartLine{ProductID: stand.ID, Qty: 1})

	catalog, err := repo.CatalogTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, catalog.ProductCount)
	// cable 47*60 + mouse 17*400 + hub 10*500 + stand 2*1100
	assert.True(t, catalog.StockValue.Equal(dec("16820")), "stock value %s", catalog.StockValue)

	lifetime, err := repo.SalesTotals(ctx, "")
	require.NoError(t, err)
	assert.True(t, lifetime.Revenue.Equal(dec("5450")), "revenue %s", lifetime.Revenue)
	assert.True(t, lifetime.Profit.Equal(dec("1970")), "profit %s", lifetime.Profit)

	may2, err := repo.SalesTotals(ctx, "2024-05-02")
	require.NoError(t, err)
	assert.True(t, may2.Revenue.Equal(dec("2350")), "may 2 revenue %s", may2.Revenue)

	days, err := repo.RevenueByDay(ctx, 2)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-05-03", days[0].Date)
	assert.True(t, days[0].Revenue.Equal(dec("2900")))
	assert.Equal(t, "2024-05-02", days[1].Date)

	top, err := repo.TopProducts(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	// cable and mouse both sold 3; ties fall back to product id.
	assert.Equal(t, cable.ID, top[0].ProductID)
	assert.Equal(t, 3, top[0].Quantity)
	assert.Equal(t, mouse.ID, top[1].ProductID)
	assert.Equal(t, 3, top[1].Quantity)
	assert.Equal(t, hub.ID, top[2].ProductID)

	low, err := repo.LowStock(ctx, 11, 5)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, stand.ID, low[0].ProductID)
	assert.Equal(t, 2, low[0].Stock)
	assert.Equal(t, hub.ID, low[1].ProductID)

	recent, err := repo.RecentSales(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, last.ID, recent[0].ID)
	assert.True(t, recent[0].TotalAmount.Equal(dec("1600")))
	assert.Greater(t, recent[0].ID, recent[1].ID)
}
