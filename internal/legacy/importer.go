// Package legacy loads a shop database written by the earlier single-file web
// app: REAL prices, a pipe-joined customer_name column and 12-hour sale
// timestamps.
package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store"
)

var legacyTimeLayouts = []string{"2006-01-02 03:04 PM", domain.SaleTimeLayout, "2006-01-02 15:04:05"}

type Result struct {
	Products int
	Sales    int
	Items    int
	Skipped  int
}

type Importer struct {
	src    *sql.DB
	repo   store.Repository
	logger *slog.Logger
}

func NewImporter(src *sql.DB, repo store.Repository, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{src: src, repo: repo, logger: logger.With("component", "legacy-import")}
}

type legacySale struct {
	id       int64
	customer string
	date     string
	total    float64
	profit   float64
}

type legacyItem struct {
	productID int64
	quantity  int
	priceEach float64
	subtotal  float64
	profit    float64
}

// Run copies every product and sale into the repository. Products get new ids;
// sale totals are recomputed from their items. Each sale is written in its own
// transaction, so a failure stops the run with earlier rows kept.
func (im *Importer) Run(ctx context.Context) (Result, error) {
	var result Result

	idMap, err := im.importProducts(ctx, &result)
	if err != nil {
		return result, err
	}

	sales, err := im.readSales(ctx)
	if err != nil {
		return result, err
	}
	for _, ls := range sales {
		items, err := im.readItems(ctx, ls.id)
		if err != nil {
			return result, err
		}

		sale, ok := im.buildSale(ls, items, idMap)
		if !ok {
			result.Skipped++
			continue
		}
		if _, err := im.repo.ImportSale(ctx, sale); err != nil {
			return result, fmt.Errorf("import sale %d: %w", ls.id, err)
		}
		result.Sales++
		result.Items += len(sale.Items)
	}

	im.logger.Info("legacy import finished", "products", result.Products, "sales", result.Sales, "items", result.Items, "skipped", result.Skipped)
	return result, nil
}

func (im *Importer) importProducts(ctx context.Context, result *Result) (map[int64]int64, error) {
	rows, err := im.src.QueryContext(ctx, `
		SELECT id, name, sku, category, purchase_price, selling_price, stock
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("read legacy products: %w", err)
	}

	type legacyProduct struct {
		id      int64
		product domain.Product
	}
	var products []legacyProduct
	for rows.Next() {
		var (
			id                int64
			name              string
			sku, category     sql.NullString
			purchase, selling float64
			stock             int
		)
		if err := rows.Scan(&id, &name, &sku, &category, &purchase, &selling, &stock); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if stock < 0 {
			im.logger.Warn("clamping negative legacy stock", "legacy_id", id, "stock", stock)
			stock = 0
		}
		products = append(products, legacyProduct{id: id, product: domain.Product{
			Name:          strings.TrimSpace(name),
			SKU:           strings.TrimSpace(sku.String),
			Category:      strings.TrimSpace(category.String),
			PurchasePrice: money(purchase),
			SellingPrice:  money(selling),
			Stock:         stock,
		}})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	idMap := make(map[int64]int64, len(products))
	for _, lp := range products {
		created, err := im.repo.CreateProduct(ctx, lp.product)
		if err != nil {
			return nil, fmt.Errorf("import product %d: %w", lp.id, err)
		}
		idMap[lp.id] = created.ID
		result.Products++
	}
	return idMap, nil
}

func (im *Importer) readSales(ctx context.Context) ([]legacySale, error) {
	rows, err := im.src.QueryContext(ctx, `
		SELECT id, COALESCE(customer_name, ''), date, COALESCE(total_amount, 0), COALESCE(total_profit, 0)
		FROM sales
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("read legacy sales: %w", err)
	}
	defer rows.Close()

	var sales []legacySale
	for rows.Next() {
		var ls legacySale
		if err := rows.Scan(&ls.id, &ls.customer, &ls.date, &ls.total, &ls.profit); err != nil {
			return nil, err
		}
		sales = append(sales, ls)
	}
	return sales, rows.Err()
}

func (im *Importer) readItems(ctx context.Context, saleID int64) ([]legacyItem, error) {
	rows, err := im.src.QueryContext(ctx, `
		SELECT COALESCE(product_id, 0), COALESCE(quantity, 0), COALESCE(price_each, 0), COALESCE(subtotal, 0), COALESCE(profit, 0)
		FROM sale_items
		WHERE sale_id = ?
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("read legacy items for sale %d: %w", saleID, err)
	}
	defer rows.Close()

	var items []legacyItem
	for rows.Next() {
		var it legacyItem
		if err := rows.Scan(&it.productID, &it.quantity, &it.priceEach, &it.subtotal, &it.profit); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (im *Importer) buildSale(ls legacySale, items []legacyItem, idMap map[int64]int64) (domain.Sale, bool) {
	soldAt, err := parseLegacyTime(ls.date)
	if err != nil {
		im.logger.Warn("skipping sale with unreadable date", "legacy_id", ls.id, "date", ls.date)
		return domain.Sale{}, false
	}

	sale := domain.Sale{
		Customer:    domain.DecodeCustomer(ls.customer),
		SoldAt:      soldAt,
		TotalAmount: decimal.Zero,
		TotalProfit: decimal.Zero,
	}
	for _, it := range items {
		productID, ok := idMap[it.productID]
		if !ok || it.quantity < 1 {
			im.logger.Warn("dropping legacy sale item", "legacy_sale_id", ls.id, "legacy_product_id", it.productID, "quantity", it.quantity)
			continue
		}
		item := domain.SaleItem{
			ProductID: productID,
			Quantity:  it.quantity,
			PriceEach: money(it.priceEach),
			Subtotal:  money(it.subtotal),
			Profit:    money(it.profit),
		}
		sale.TotalAmount = sale.TotalAmount.Add(item.Subtotal)
		sale.TotalProfit = sale.TotalProfit.Add(item.Profit)
		sale.Items = append(sale.Items, item)
	}
	if len(sale.Items) == 0 {
		im.logger.Warn("skipping legacy sale without items", "legacy_id", ls.id)
		return domain.Sale{}, false
	}

	if !sale.TotalAmount.Equal(money(ls.total)) || !sale.TotalProfit.Equal(money(ls.profit)) {
		im.logger.Warn("legacy sale totals differ from items; using item sums",
			"legacy_id", ls.id,
			"stored_total", money(ls.total).StringFixed(2),
			"items_total", sale.TotalAmount.StringFixed(2),
		)
	}
	return sale, true
}

func parseLegacyTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised sale time %q", raw)
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
