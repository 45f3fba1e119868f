package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/cache"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store"
)

const (
	defaultDashboardTTL      = 30 * time.Second
	defaultLowStockThreshold = 10
)

type Service struct {
	repo              store.Repository
	dashboardCache    cache.DashboardCache
	dashboardTTL      time.Duration
	logger            *slog.Logger
	now               func() time.Time
	quantityPolicy    QuantityPolicy
	lowStockThreshold int
}

type Option func(*Service)

// WithClock replaces time.Now for sale timestamps and "today" in reports.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithQuantityPolicy(policy QuantityPolicy) Option {
	return func(s *Service) {
		s.quantityPolicy = policy
	}
}

func WithLowStockThreshold(threshold int) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.lowStockThreshold = threshold
		}
	}
}

func WithDashboardTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.dashboardTTL = ttl
		}
	}
}

func New(repo store.Repository, dashboardCache cache.DashboardCache, opts ...Option) *Service {
	if dashboardCache == nil {
		dashboardCache = cache.NoopDashboardCache{}
	}

	s := &Service{
		repo:              repo,
		dashboardCache:    dashboardCache,
		dashboardTTL:      defaultDashboardTTL,
		logger:            slog.Default(),
		now:               time.Now,
		quantityPolicy:    QuantitySkip,
		lowStockThreshold: defaultLowStockThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "service")
	return s
}

func (s *Service) CreateProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	product, err := normalizeProductInput(in)
	if err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info("product created", "product_id", created.ID, "sku", created.SKU, "stock", created.Stock)
	s.invalidateDashboard(ctx)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, in domain.ProductInput) (domain.Product, error) {
	product, err := normalizeProductInput(in)
	if err != nil {
		return domain.Product{}, err
	}
	product.ID = id

	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info("product updated", "product_id", updated.ID, "sku", updated.SKU, "stock", updated.Stock)
	s.invalidateDashboard(ctx)
	return *updated, nil
}

// GetProduct returns nil without an error when id is unknown.
func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Service) ListProducts(ctx context.Context, view domain.ProductView) ([]domain.Product, error) {
	switch view {
	case "":
		view = domain.CatalogView
	case domain.CatalogView, domain.SaleView:
	default:
		return nil, fmt.Errorf("%w: unknown product view %q", store.ErrValidation, view)
	}
	return s.repo.ListProducts(ctx, view)
}

func normalizeProductInput(in domain.ProductInput) (domain.Product, error) {
	product := domain.Product{
		Name:          strings.TrimSpace(in.Name),
		SKU:           strings.TrimSpace(in.SKU),
		Category:      strings.TrimSpace(in.Category),
		PurchasePrice: in.PurchasePrice,
		SellingPrice:  in.SellingPrice,
		Stock:         in.Stock,
	}

	switch {
	case product.Name == "":
		return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	case product.PurchasePrice.IsNegative() || product.SellingPrice.IsNegative():
		return domain.Product{}, fmt.Errorf("%w: prices must not be negative", store.ErrValidation)
	case !domain.HasCentPrecision(product.PurchasePrice) || !domain.HasCentPrecision(product.SellingPrice):
		return domain.Product{}, fmt.Errorf("%w: prices allow at most two decimal places", store.ErrValidation)
	case !domain.WithinBound(product.PurchasePrice) || !domain.WithinBound(product.SellingPrice):
		return domain.Product{}, fmt.Errorf("%w: prices must not exceed %s", store.ErrValidation, domain.MaxAmount)
	case product.Stock < 0:
		return domain.Product{}, fmt.Errorf("%w: stock must not be negative", store.ErrValidation)
	}
	return product, nil
}
