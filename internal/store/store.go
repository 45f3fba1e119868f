package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrDuplicateSKU      = errors.New("duplicate sku")
	ErrNotFound          = errors.New("not found")
	ErrEmptyCart         = errors.New("empty cart")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError reports the line that could not be fulfilled.
// It matches ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type Repository interface {
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, view domain.ProductView) ([]domain.Product, error)

	// CreateSale prices draft against the current catalog and writes the
	// header, its items and the stock decrements as one unit.
	CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error)
	// ImportSale writes an already priced historical sale without touching stock.
	ImportSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)

	CatalogTotals(ctx context.Context) (domain.CatalogTotals, error)
	// SalesTotals sums sales whose timestamp starts with datePrefix; an empty
	// prefix covers every sale.
	SalesTotals(ctx context.Context, datePrefix string) (domain.SalesTotals, error)
	// RevenueByDay returns up to limit days with sales, most recent first.
	RevenueByDay(ctx context.Context, limit int) ([]domain.TrendPoint, error)
	TopProducts(ctx context.Context, limit int) ([]domain.ProductQuantity, error)
	LowStock(ctx context.Context, threshold int, limit int) ([]domain.StockLevel, error)
	RecentSales(ctx context.Context, limit int) ([]domain.SaleSummary, error)
}
