package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/metrics"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store"
)

// QuantityPolicy decides what happens to a cart line whose quantity is not a
// whole number of at least zero.
type QuantityPolicy string

const (
	// QuantitySkip drops the offending line and keeps the rest of the cart.
	QuantitySkip QuantityPolicy = "skip"
	// QuantityReject refuses the whole submission.
	QuantityReject QuantityPolicy = "reject"
)

func ParseQuantityPolicy(raw string) (QuantityPolicy, error) {
	switch QuantityPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", QuantitySkip:
		return QuantitySkip, nil
	case QuantityReject:
		return QuantityReject, nil
	default:
		return "", fmt.Errorf("%w: unknown quantity policy %q", store.ErrValidation, raw)
	}
}

// ParseCart turns raw per-product quantity fields into cart lines. Blank and
// zero values mean "not purchased".
func (s *Service) ParseCart(raw map[int64]string) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(raw))
	for productID, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		qty, err := strconv.Atoi(value)
		if err != nil || qty < 0 {
			if s.quantityPolicy == QuantityReject {
				return nil, fmt.Errorf("%w: invalid quantity %q for product %d", store.ErrValidation, value, productID)
			}
			s.logger.Debug("skipping malformed quantity", "product_id", productID, "value", value)
			continue
		}
		if qty == 0 {
			continue
		}
		lines = append(lines, domain.CartLine{ProductID: productID, Qty: qty})
	}
	slices.SortFunc(lines, func(a, b domain.CartLine) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return lines, nil
}

// CreateSale records a sale for the given cart and returns its id. Either the
// header, every item and every stock decrement are stored, or nothing is.
func (s *Service) CreateSale(ctx context.Context, customer domain.Customer, lines []domain.CartLine) (int64, error) {
	normalized, err := s.normalizeLines(lines)
	if err != nil {
		metrics.SaleRejected(rejectReason(err))
		return 0, err
	}
	if len(normalized) == 0 {
		metrics.SaleRejected(rejectReason(store.ErrEmptyCart))
		return 0, store.ErrEmptyCart
	}

	draft := domain.SaleDraft{
		Customer: domain.NewCustomer(customer.Name, customer.Phone, customer.Address),
		SoldAt:   s.now().Truncate(time.Minute),
		Lines:    normalized,
	}

	sale, err := s.repo.CreateSale(ctx, draft)
	if err != nil {
		metrics.SaleRejected(rejectReason(err))
		s.logger.Warn("sale rejected", "customer", draft.Customer.Encode(), "lines", len(normalized), "error", err)
		return 0, err
	}

	metrics.ObserveSale(sale.TotalAmount.InexactFloat64())
	s.logger.Info("sale recorded",
		"sale_id", sale.ID,
		"customer", sale.Customer.Encode(),
		"items", len(sale.Items),
		"total", sale.TotalAmount.StringFixed(2),
		"profit", sale.TotalProfit.StringFixed(2),
	)
	s.invalidateDashboard(ctx)
	return sale.ID, nil
}

func (s *Service) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// normalizeLines merges repeated products and drops zero quantities, keeping
// first-seen order. Negative quantities follow the quantity policy.
func (s *Service) normalizeLines(lines []domain.CartLine) ([]domain.CartLine, error) {
	index := make(map[int64]int, len(lines))
	out := make([]domain.CartLine, 0, len(lines))
	for _, line := range lines {
		if line.Qty < 0 {
			if s.quantityPolicy == QuantityReject {
				return nil, fmt.Errorf("%w: invalid quantity %d for product %d", store.ErrValidation, line.Qty, line.ProductID)
			}
			continue
		}
		if line.Qty == 0 {
			continue
		}
		if i, ok := index[line.ProductID]; ok {
			out[i].Qty += line.Qty
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, store.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrValidation):
		return "validation"
	default:
		return "error"
	}
}
