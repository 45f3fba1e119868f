// Package sqlstore implements store.Repository on database/sql. Engine
// differences (placeholders, DDL, row locking, constraint errors) come from a
// Dialect supplied by the sqlite and postgres packages.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store"
)

type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	Schema      []string
	// LockSuffix is appended to the product read inside a sale transaction.
	LockSuffix        string
	TxOptions         *sql.TxOptions
	IsUniqueViolation func(err error) bool
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Engine() string {
	return s.dialect.Name
}

// EnsureSchema creates missing tables and indexes. It is safe to run on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

const productColumns = `id, name, sku, category, purchase_price_cents, selling_price_cents, stock`

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := store.CheckPrices(product); err != nil {
		return nil, err
	}

	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO products (name, sku, category, purchase_price_cents, selling_price_cents, stock)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), product.Name, nullIfEmpty(product.SKU), product.Category,
		domain.Cents(product.PurchasePrice), domain.Cents(product.SellingPrice), product.Stock,
	).Scan(&product.ID)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrDuplicateSKU, product.SKU)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := store.CheckPrices(product); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE products
		SET name = ?, sku = ?, category = ?, purchase_price_cents = ?, selling_price_cents = ?, stock = ?
		WHERE id = ?
	`), product.Name, nullIfEmpty(product.SKU), product.Category,
		domain.Cents(product.PurchasePrice), domain.Cents(product.SellingPrice), product.Stock, product.ID)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrDuplicateSKU, product.SKU)
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, product.ID)
	}
	return &product, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, id)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context, view domain.ProductView) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id DESC`
	if view == domain.SaleView {
		query = `SELECT ` + productColumns + ` FROM products WHERE stock > 0 ORDER BY name ASC, id ASC`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	if len(draft.Lines) == 0 {
		return nil, store.ErrEmptyCart
	}

	tx, err := s.db.BeginTx(ctx, s.dialect.TxOptions)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	snapshot, err := s.lockProducts(ctx, tx, store.LineProductIDs(draft.Lines))
	if err != nil {
		return nil, err
	}

	sale, err := store.PriceCart(draft, snapshot)
	if err != nil {
		return nil, err
	}

	if err := s.insertSale(ctx, tx, &sale); err != nil {
		return nil, err
	}
	for _, item := range sale.Items {
		if err := s.decrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ImportSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if err := store.CheckImported(sale); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, s.dialect.TxOptions)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.insertSale(ctx, tx, &sale); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	var (
		sale        domain.Sale
		soldAt      string
		totalCents  int64
		profitCents int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, customer_name, customer_phone, customer_address, sold_at, total_amount_cents, total_profit_cents
		FROM sales
		WHERE id = ?
	`), id).Scan(&sale.ID, &sale.Customer.Name, &sale.Customer.Phone, &sale.Customer.Address, &soldAt, &totalCents, &profitCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %d", store.ErrNotFound, id)
		}
		return nil, err
	}
	if sale.SoldAt, err = parseSoldAt(soldAt); err != nil {
		return nil, err
	}
	sale.TotalAmount = domain.FromCents(totalCents)
	sale.TotalProfit = domain.FromCents(profitCents)

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT si.id, si.product_id, p.name, p.sku, si.quantity, si.price_each_cents, si.subtotal_cents, si.profit_cents
		FROM sale_items si
		JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = ?
		ORDER BY si.id
	`), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sale.Items = make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var (
			item                    domain.SaleItem
			sku                     sql.NullString
			price, subtotal, profit int64
		)
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &sku, &item.Quantity, &price, &subtotal, &profit); err != nil {
			return nil, err
		}
		item.SaleID = sale.ID
		item.SKU = sku.String
		item.PriceEach = domain.FromCents(price)
		item.Subtotal = domain.FromCents(subtotal)
		item.Profit = domain.FromCents(profit)
		sale.Items = append(sale.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) CatalogTotals(ctx context.Context) (domain.CatalogTotals, error) {
	var (
		totals     domain.CatalogTotals
		valueCents int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), CAST(COALESCE(SUM(stock * purchase_price_cents), 0) AS BIGINT)
		FROM products
	`).Scan(&totals.ProductCount, &valueCents)
	if err != nil {
		return domain.CatalogTotals{}, err
	}
	totals.StockValue = domain.FromCents(valueCents)
	return totals, nil
}

func (s *Store) SalesTotals(ctx context.Context, datePrefix string) (domain.SalesTotals, error) {
	var revenue, profit int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT CAST(COALESCE(SUM(total_amount_cents), 0) AS BIGINT),
		       CAST(COALESCE(SUM(total_profit_cents), 0) AS BIGINT)
		FROM sales
		WHERE sold_at LIKE ?
	`), datePrefix+"%").Scan(&revenue, &profit)
	if err != nil {
		return domain.SalesTotals{}, err
	}
	return domain.SalesTotals{Revenue: domain.FromCents(revenue), Profit: domain.FromCents(profit)}, nil
}

func (s *Store) RevenueByDay(ctx context.Context, limit int) ([]domain.TrendPoint, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT SUBSTR(sold_at, 1, 10) AS day, CAST(SUM(total_amount_cents) AS BIGINT) AS revenue
		FROM sales
		GROUP BY SUBSTR(sold_at, 1, 10)
		ORDER BY day DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.TrendPoint, 0, max(limit, 0))
	for rows.Next() {
		var (
			point domain.TrendPoint
			cents int64
		)
		if err := rows.Scan(&point.Date, &cents); err != nil {
			return nil, err
		}
		point.Revenue = domain.FromCents(cents)
		points = append(points, point)
	}
	return points, rows.Err()
}

func (s *Store) TopProducts(ctx context.Context, limit int) ([]domain.ProductQuantity, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT p.id, p.name, CAST(SUM(si.quantity) AS BIGINT) AS qty
		FROM sale_items si
		JOIN products p ON p.id = si.product_id
		GROUP BY p.id, p.name
		ORDER BY qty DESC, p.id ASC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ProductQuantity, 0, max(limit, 0))
	for rows.Next() {
		var row domain.ProductQuantity
		if err := rows.Scan(&row.ProductID, &row.Name, &row.Quantity); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) LowStock(ctx context.Context, threshold int, limit int) ([]domain.StockLevel, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, name, stock
		FROM products
		WHERE stock < ?
		ORDER BY stock ASC, id ASC
		LIMIT ?
	`), threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.StockLevel, 0, max(limit, 0))
	for rows.Next() {
		var row domain.StockLevel
		if err := rows.Scan(&row.ProductID, &row.Name, &row.Stock); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) RecentSales(ctx context.Context, limit int) ([]domain.SaleSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, customer_name, sold_at, total_amount_cents
		FROM sales
		ORDER BY id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SaleSummary, 0, max(limit, 0))
	for rows.Next() {
		var (
			row    domain.SaleSummary
			soldAt string
			cents  int64
		)
		if err := rows.Scan(&row.ID, &row.CustomerName, &soldAt, &cents); err != nil {
			return nil, err
		}
		if row.SoldAt, err = parseSoldAt(soldAt); err != nil {
			return nil, err
		}
		row.TotalAmount = domain.FromCents(cents)
		out = append(out, row)
	}
	return out, rows.Err()
}

// lockProducts reads the products a sale references inside tx, in id order.
// On engines with row locks the rows stay locked until the transaction ends.
func (s *Store) lockProducts(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]domain.Product, error) {
	snapshot := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return snapshot, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` +
		strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") + `) ORDER BY id` + s.dialect.LockSuffix

	rows, err := tx.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		snapshot[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *Store) insertSale(ctx context.Context, tx *sql.Tx, sale *domain.Sale) error {
	err := tx.QueryRowContext(ctx, s.rebind(`
		INSERT INTO sales (customer_name, customer_phone, customer_address, sold_at, total_amount_cents, total_profit_cents)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), sale.Customer.Name, sale.Customer.Phone, sale.Customer.Address,
		sale.SoldAt.Format(domain.SaleTimeLayout), domain.Cents(sale.TotalAmount), domain.Cents(sale.TotalProfit),
	).Scan(&sale.ID)
	if err != nil {
		return err
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		err := tx.QueryRowContext(ctx, s.rebind(`
			INSERT INTO sale_items (sale_id, product_id, quantity, price_each_cents, subtotal_cents, profit_cents)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id
		`), sale.ID, item.ProductID, item.Quantity,
			domain.Cents(item.PriceEach), domain.Cents(item.Subtotal), domain.Cents(item.Profit),
		).Scan(&item.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// decrementStock must only run inside the sale transaction. The conditional
// update keeps stock from going negative even without a prior row lock.
func (s *Store) decrementStock(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	res, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?
	`), qty, productID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var available int
	if err := tx.QueryRowContext(ctx, s.rebind(`SELECT stock FROM products WHERE id = ?`), productID).Scan(&available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: product %d", store.ErrNotFound, productID)
		}
		return err
	}
	return &store.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
}

// rebind rewrites '?' bind markers into the dialect's placeholder syntax.
func (s *Store) rebind(query string) string {
	if s.dialect.Placeholder == nil {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p                 domain.Product
		sku               sql.NullString
		purchase, selling int64
	)
	if err := row.Scan(&p.ID, &p.Name, &sku, &p.Category, &purchase, &selling, &p.Stock); err != nil {
		return domain.Product{}, err
	}
	p.SKU = sku.String
	p.PurchasePrice = domain.FromCents(purchase)
	p.SellingPrice = domain.FromCents(selling)
	return p, nil
}

func parseSoldAt(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(domain.SaleTimeLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse sale timestamp %q: %w", raw, err)
	}
	return t, nil
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

// DollarPlaceholder renders PostgreSQL style "$n" parameters.
func DollarPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}
