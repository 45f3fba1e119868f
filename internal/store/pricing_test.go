package store

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
)

func catalog() map[int64]domain.Product {
	return map[int64]domain.Product{
		1: {ID: 1, Name: "USB Cable", PurchasePrice: decimal.RequireFromString("60"), SellingPrice: decimal.RequireFromString("100"), Stock: 50},
		2: {ID: 2, Name: "Mouse", PurchasePrice: decimal.RequireFromString("450.50"), SellingPrice: decimal.RequireFromString("650.25"), Stock: 2},
	}
}

func TestPriceCartComputesTotals(t *testing.T) {
	sale, err := PriceCart(domain.SaleDraft{
		Customer: domain.NewCustomer("Ali", "", ""),
		Lines:    []domain.CartLine{{ProductID: 1, Qty: 3}, {ProductID: 2, Qty: 2}},
	}, catalog())
	require.NoError(t, err)

	require.Len(t, sale.Items, 2)
	assert.Equal(t, "300.00", sale.Items[0].Subtotal.StringFixed(2))
	assert.Equal(t, "120.00", sale.Items[0].Profit.StringFixed(2))
	assert.Equal(t, "1300.50", sale.Items[1].Subtotal.StringFixed(2))
	assert.Equal(t, "399.50", sale.Items[1].Profit.StringFixed(2))
	assert.Equal(t, "1600.50", sale.TotalAmount.StringFixed(2))
	assert.Equal(t, "519.50", sale.TotalProfit.StringFixed(2))
	assert.Equal(t, "Ali", sale.Customer.Name)
}

func TestPriceCartRejections(t *testing.T) {
	tests := []struct {
		name  string
		lines []domain.CartLine
		want  error
	}{
		{name: "empty", lines: nil, want: ErrEmptyCart},
		{name: "zero quantity", lines: []domain.CartLine{{ProductID: 1, Qty: 0}}, want: ErrValidation},
		{name: "duplicate product", lines: []domain.CartLine{{ProductID: 1, Qty: 1}, {ProductID: 1, Qty: 2}}, want: ErrValidation},
		{name: "unknown product", lines: []domain.CartLine{{ProductID: 9, Qty: 1}}, want: ErrNotFound},
		{name: "short stock", lines: []domain.CartLine{{ProductID: 2, Qty: 3}}, want: ErrInsufficientStock},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := PriceCart(domain.SaleDraft{Lines: tc.lines}, catalog())
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPriceCartKeepsAmountsWithinCentsRange(t *testing.T) {
	products := map[int64]domain.Product{
		1: {ID: 1, Name: "Server Rack", PurchasePrice: decimal.RequireFromString("1000000000"), SellingPrice: decimal.RequireFromString("10000000000"), Stock: 100},
		2: {ID: 2, Name: "Clearance Lot", PurchasePrice: decimal.RequireFromString("60000000000"), SellingPrice: decimal.Zero, Stock: 10},
	}

	_, err := PriceCart(domain.SaleDraft{Lines: []domain.CartLine{{ProductID: 1, Qty: 11}}}, products)
	assert.ErrorIs(t, err, ErrValidation, "line subtotal")
	_, err = PriceCart(domain.SaleDraft{Lines: []domain.CartLine{{ProductID: 2, Qty: 2}}}, products)
	assert.ErrorIs(t, err, ErrValidation, "line loss")

	sale, err := PriceCart(domain.SaleDraft{Lines: []domain.CartLine{{ProductID: 1, Qty: 10}}}, products)
	require.NoError(t, err)
	assert.True(t, sale.TotalAmount.Equal(domain.MaxAmount))
}

func TestCheckImported(t *testing.T) {
	item := domain.SaleItem{ProductID: 1, Quantity: 1, PriceEach: decimal.RequireFromString("100"), Subtotal: decimal.RequireFromString("100"), Profit: decimal.RequireFromString("40")}
	ok := domain.Sale{TotalAmount: item.Subtotal, TotalProfit: item.Profit, Items: []domain.SaleItem{item}}
	require.NoError(t, CheckImported(ok))

	assert.ErrorIs(t, CheckImported(domain.Sale{}), ErrEmptyCart)

	huge := ok
	huge.TotalAmount = decimal.RequireFromString("1e17")
	assert.ErrorIs(t, CheckImported(huge), ErrValidation)
}

func TestInsufficientStockErrorDetails(t *testing.T) {
	_, err := PriceCart(domain.SaleDraft{Lines: []domain.CartLine{{ProductID: 2, Qty: 5}}}, catalog())

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(2), stockErr.ProductID)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)
	assert.Contains(t, err.Error(), "requested 5, available 2")
}

func TestLineProductIDs(t *testing.T) {
	ids := LineProductIDs([]domain.CartLine{{ProductID: 7}, {ProductID: 3}, {ProductID: 7}, {ProductID: 5}})
	assert.Equal(t, []int64{3, 5, 7}, ids)
}
