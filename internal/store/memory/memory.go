package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store"
)

type Store struct {
	mu            sync.RWMutex
	products      map[int64]domain.Product
	productBySKU  map[string]int64
	sales         map[int64]domain.Sale
	lastProductID int64
	lastSaleID    int64
	lastItemID    int64
}

func New() *Store {
	return &Store{
		products:     make(map[int64]domain.Product),
		productBySKU: make(map[string]int64),
		sales:        make(map[int64]domain.Sale),
	}
}

// NewSeeded returns a store holding a small demo catalog.
func NewSeeded() *Store {
	s := New()
	for _, p := range []domain.Product{
		{Name: "USB Cable", SKU: "CAB-USB-C", Category: "accessories", PurchasePrice: decimal.RequireFromString("60"), SellingPrice: decimal.RequireFromString("100"), Stock: 50},
		{Name: "Wireless Mouse", SKU: "MOU-WL-01", Category: "peripherals", PurchasePrice: decimal.RequireFromString("450"), SellingPrice: decimal.RequireFromString("650"), Stock: 25},
		{Name: "Mechanical Keyboard", SKU: "KEY-MECH-01", Category: "peripherals", PurchasePrice: decimal.RequireFromString("3200"), SellingPrice: decimal.RequireFromString("4500"), Stock: 8},
		{Name: "HDMI Adapter", SKU: "ADP-HDMI-01", Category: "accessories", PurchasePrice: decimal.RequireFromString("350"), SellingPrice: decimal.RequireFromString("550"), Stock: 4},
		{Name: "Flash Drive 32GB", SKU: "USB-32GB", Category: "storage", PurchasePrice: decimal.RequireFromString("700"), SellingPrice: decimal.RequireFromString("950"), Stock: 30},
		{Name: "Laptop Stand", SKU: "STD-LAP-01", Category: "accessories", PurchasePrice: decimal.RequireFromString("1100"), SellingPrice: decimal.RequireFromString("1600"), Stock: 6},
	} {
		s.insertProduct(p)
	}
	return s
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if err := store.CheckPrices(product); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU != "" {
		if _, exists := s.productBySKU[product.SKU]; exists {
			return nil, fmt.Errorf("%w: %s", store.ErrDuplicateSKU, product.SKU)
		}
	}
	created := s.insertProduct(product)
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if err := store.CheckPrices(product); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[product.ID]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, product.ID)
	}
	if product.SKU != "" {
		if owner, exists := s.productBySKU[product.SKU]; exists && owner != product.ID {
			return nil, fmt.Errorf("%w: %s", store.ErrDuplicateSKU, product.SKU)
		}
	}
	if current.SKU != "" {
		delete(s.productBySKU, current.SKU)
	}
	if product.SKU != "" {
		s.productBySKU[product.SKU] = product.ID
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, id)
	}
	return &product, nil
}

func (s *Store) ListProducts(_ context.Context, view domain.ProductView) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if view == domain.SaleView && p.Stock <= 0 {
			continue
		}
		products = append(products, p)
	}

	if view == domain.SaleView {
		slices.SortFunc(products, func(a, b domain.Product) int {
			if c := cmpString(a.Name, b.Name); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
	} else {
		slices.SortFunc(products, func(a, b domain.Product) int {
			return cmp.Compare(b.ID, a.ID)
		})
	}
	return products, nil
}

func (s *Store) CreateSale(_ context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[int64]domain.Product, len(draft.Lines))
	for _, id := range store.LineProductIDs(draft.Lines) {
		if p, ok := s.products[id]; ok {
			snapshot[id] = p
		}
	}

	// Everything is validated against the snapshot before any write, so a
	// rejected cart leaves the store untouched.
	sale, err := store.PriceCart(draft, snapshot)
	if err != nil {
		return nil, err
	}

	for _, item := range sale.Items {
		if err := s.decrementStock(item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}
	s.appendSale(&sale)
	return cloneSale(sale), nil
}

func (s *Store) ImportSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := store.CheckImported(sale); err != nil {
		return nil, err
	}
	for _, item := range sale.Items {
		if _, ok := s.products[item.ProductID]; !ok {
			return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, item.ProductID)
		}
	}
	s.appendSale(&sale)
	return cloneSale(sale), nil
}

func (s *Store) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, fmt.Errorf("%w: sale %d", store.ErrNotFound, id)
	}
	out := cloneSale(sale)
	for i := range out.Items {
		if p, ok := s.products[out.Items[i].ProductID]; ok {
			out.Items[i].ProductName = p.Name
			out.Items[i].SKU = p.SKU
		}
	}
	return out, nil
}

func (s *Store) CatalogTotals(_ context.Context) (domain.CatalogTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := domain.CatalogTotals{StockValue: decimal.Zero}
	for _, p := range s.products {
		totals.ProductCount++
		totals.StockValue = totals.StockValue.Add(p.PurchasePrice.Mul(decimal.NewFromInt(int64(p.Stock))))
	}
	return totals, nil
}

func (s *Store) SalesTotals(_ context.Context, datePrefix string) (domain.SalesTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := domain.SalesTotals{Revenue: decimal.Zero, Profit: decimal.Zero}
	for _, sale := range s.sales {
		if !strings.HasPrefix(sale.SoldAt.Format(domain.SaleTimeLayout), datePrefix) {
			continue
		}
		totals.Revenue = totals.Revenue.Add(sale.TotalAmount)
		totals.Profit = totals.Profit.Add(sale.TotalProfit)
	}
	return totals, nil
}

func (s *Store) RevenueByDay(_ context.Context, limit int) ([]domain.TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[string]decimal.Decimal)
	for _, sale := range s.sales {
		day := sale.SoldAt.Format(domain.DateLayout)
		byDay[day] = byDay[day].Add(sale.TotalAmount)
	}

	points := make([]domain.TrendPoint, 0, len(byDay))
	for day, revenue := range byDay {
		points = append(points, domain.TrendPoint{Date: day, Revenue: revenue})
	}
	slices.SortFunc(points, func(a, b domain.TrendPoint) int {
		return cmpString(b.Date, a.Date)
	})
	return truncate(points, limit), nil
}

func (s *Store) TopProducts(_ context.Context, limit int) ([]domain.ProductQuantity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sold := make(map[int64]int)
	for _, sale := range s.sales {
		for _, item := range sale.Items {
			sold[item.ProductID] += item.Quantity
		}
	}

	rows := make([]domain.ProductQuantity, 0, len(sold))
	for id, qty := range sold {
		rows = append(rows, domain.ProductQuantity{ProductID: id, Name: s.products[id].Name, Quantity: qty})
	}
	slices.SortFunc(rows, func(a, b domain.ProductQuantity) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return truncate(rows, limit), nil
}

func (s *Store) LowStock(_ context.Context, threshold int, limit int) ([]domain.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.StockLevel, 0)
	for _, p := range s.products {
		if p.Stock < threshold {
			rows = append(rows, domain.StockLevel{ProductID: p.ID, Name: p.Name, Stock: p.Stock})
		}
	}
	slices.SortFunc(rows, func(a, b domain.StockLevel) int {
		if c := cmp.Compare(a.Stock, b.Stock); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return truncate(rows, limit), nil
}

func (s *Store) RecentSales(_ context.Context, limit int) ([]domain.SaleSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.SaleSummary, 0, len(s.sales))
	for _, sale := range s.sales {
		rows = append(rows, domain.SaleSummary{
			ID:           sale.ID,
			CustomerName: sale.Customer.Name,
			SoldAt:       sale.SoldAt,
			TotalAmount:  sale.TotalAmount,
		})
	}
	slices.SortFunc(rows, func(a, b domain.SaleSummary) int {
		return cmp.Compare(b.ID, a.ID)
	})
	return truncate(rows, limit), nil
}

// insertProduct expects s.mu to be held.
func (s *Store) insertProduct(product domain.Product) domain.Product {
	s.lastProductID++
	product.ID = s.lastProductID
	s.products[product.ID] = product
	if product.SKU != "" {
		s.productBySKU[product.SKU] = product.ID
	}
	return product
}

// decrementStock expects s.mu to be held and is only called while writing a sale.
func (s *Store) decrementStock(productID int64, qty int) error {
	product, ok := s.products[productID]
	if !ok {
		return fmt.Errorf("%w: product %d", store.ErrNotFound, productID)
	}
	if product.Stock < qty {
		return &store.InsufficientStockError{ProductID: productID, Requested: qty, Available: product.Stock}
	}
	product.Stock -= qty
	s.products[productID] = product
	return nil
}

// appendSale assigns ids to sale and its items. It expects s.mu to be held.
func (s *Store) appendSale(sale *domain.Sale) {
	s.lastSaleID++
	sale.ID = s.lastSaleID
	for i := range sale.Items {
		s.lastItemID++
		sale.Items[i].ID = s.lastItemID
		sale.Items[i].SaleID = sale.ID
	}
	s.sales[sale.ID] = *cloneSale(*sale)
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func cmpString(a string, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cloneSale(src domain.Sale) *domain.Sale {
	dst := src
	dst.Items = append([]domain.SaleItem(nil), src.Items...)
	return &dst
}
