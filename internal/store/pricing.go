package store

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
)

// PriceCart builds the sale for draft from a snapshot of the products it
// references. Repositories call it while holding the rows they will decrement,
// so the stock check here and the decrement that follows see the same values.
func PriceCart(draft domain.SaleDraft, products map[int64]domain.Product) (domain.Sale, error) {
	if len(draft.Lines) == 0 {
		return domain.Sale{}, ErrEmptyCart
	}

	sale := domain.Sale{
		Customer:    draft.Customer,
		SoldAt:      draft.SoldAt,
		TotalAmount: decimal.Zero,
		TotalProfit: decimal.Zero,
		Items:       make([]domain.SaleItem, 0, len(draft.Lines)),
	}
	seen := make(map[int64]struct{}, len(draft.Lines))
	for _, line := range draft.Lines {
		if line.Qty < 1 {
			return domain.Sale{}, fmt.Errorf("%w: quantity for product %d must be positive", ErrValidation, line.ProductID)
		}
		if _, dup := seen[line.ProductID]; dup {
			return domain.Sale{}, fmt.Errorf("%w: product %d appears more than once", ErrValidation, line.ProductID)
		}
		seen[line.ProductID] = struct{}{}

		product, ok := products[line.ProductID]
		if !ok {
			return domain.Sale{}, fmt.Errorf("%w: product %d", ErrNotFound, line.ProductID)
		}
		if product.Stock < line.Qty {
			return domain.Sale{}, &InsufficientStockError{ProductID: product.ID, Requested: line.Qty, Available: product.Stock}
		}

		qty := decimal.NewFromInt(int64(line.Qty))
		item := domain.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			SKU:         product.SKU,
			Quantity:    line.Qty,
			PriceEach:   product.SellingPrice,
			Subtotal:    product.SellingPrice.Mul(qty),
			Profit:      product.SellingPrice.Sub(product.PurchasePrice).Mul(qty),
		}
		sale.TotalAmount = sale.TotalAmount.Add(item.Subtotal)
		sale.TotalProfit = sale.TotalProfit.Add(item.Profit)
		if !domain.WithinBound(item.Subtotal) || !domain.WithinBound(item.Profit.Abs()) {
			return domain.Sale{}, fmt.Errorf("%w: line for product %d exceeds %s", ErrValidation, product.ID, domain.MaxAmount)
		}
		if !domain.WithinBound(sale.TotalAmount) || !domain.WithinBound(sale.TotalProfit.Abs()) {
			return domain.Sale{}, fmt.Errorf("%w: sale total exceeds %s", ErrValidation, domain.MaxAmount)
		}
		sale.Items = append(sale.Items, item)
	}
	return sale, nil
}

// CheckPrices rejects a product whose prices do not fit the cents columns.
func CheckPrices(product domain.Product) error {
	if !domain.WithinBound(product.PurchasePrice.Abs()) || !domain.WithinBound(product.SellingPrice.Abs()) {
		return fmt.Errorf("%w: prices of %q exceed %s", ErrValidation, product.Name, domain.MaxAmount)
	}
	return nil
}

// CheckImported rejects a historical sale that has no items or whose amounts
// do not fit the cents columns.
func CheckImported(sale domain.Sale) error {
	if len(sale.Items) == 0 {
		return ErrEmptyCart
	}
	amounts := []decimal.Decimal{sale.TotalAmount, sale.TotalProfit}
	for _, item := range sale.Items {
		amounts = append(amounts, item.PriceEach, item.Subtotal, item.Profit)
	}
	for _, amount := range amounts {
		if !domain.WithinBound(amount.Abs()) {
			return fmt.Errorf("%w: amount %s exceeds %s", ErrValidation, amount, domain.MaxAmount)
		}
	}
	return nil
}

// LineProductIDs returns the distinct product ids of lines in ascending order.
func LineProductIDs(lines []domain.CartLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	slices.Sort(ids)
	return ids
}
