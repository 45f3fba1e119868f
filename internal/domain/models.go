package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// SaleTimeLayout is how a sale timestamp is persisted. The first ten
	// characters are the sale's calendar day.
	SaleTimeLayout = "2006-01-02 15:04"
	DateLayout     = "2006-01-02"
)

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku,omitempty"`
	Category      string          `json:"category,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	Stock         int             `json:"stock"`
}

type ProductInput struct {
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Category      string          `json:"category"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	Stock         int             `json:"stock"`
}

type ProductView string

const (
	// CatalogView lists every product, newest first.
	CatalogView ProductView = "catalog"
	// SaleView lists products that can still be sold, by name.
	SaleView ProductView = "sale"
)

type CartLine struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

type SaleDraft struct {
	Customer Customer
	SoldAt   time.Time
	Lines    []CartLine
}

type Sale struct {
	ID          int64           `json:"id"`
	Customer    Customer        `json:"customer"`
	SoldAt      time.Time       `json:"sold_at"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	Items       []SaleItem      `json:"items"`
}

type SaleItem struct {
	ID          int64           `json:"id"`
	SaleID      int64           `json:"sale_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku,omitempty"`
	Quantity    int             `json:"quantity"`
	PriceEach   decimal.Decimal `json:"price_each"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Profit      decimal.Decimal `json:"profit"`
}

type CatalogTotals struct {
	ProductCount int             `json:"product_count"`
	StockValue   decimal.Decimal `json:"stock_value"`
}

type SalesTotals struct {
	Revenue decimal.Decimal `json:"revenue"`
	Profit  decimal.Decimal `json:"profit"`
}

type DashboardTotals struct {
	ProductCount    int             `json:"product_count"`
	StockValue      decimal.Decimal `json:"stock_value"`
	LifetimeRevenue decimal.Decimal `json:"lifetime_revenue"`
	LifetimeProfit  decimal.Decimal `json:"lifetime_profit"`
}

type DayOverDayChange struct {
	Today            string          `json:"today"`
	Yesterday        string          `json:"yesterday"`
	TodayRevenue     decimal.Decimal `json:"today_revenue"`
	YesterdayRevenue decimal.Decimal `json:"yesterday_revenue"`
	TodayProfit      decimal.Decimal `json:"today_profit"`
	YesterdayProfit  decimal.Decimal `json:"yesterday_profit"`
	RevenueChangePct float64         `json:"revenue_change_pct"`
	ProfitChangePct  float64         `json:"profit_change_pct"`
}

type TrendPoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ProductQuantity struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

type StockLevel struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
}

type SaleSummary struct {
	ID           int64           `json:"id"`
	CustomerName string          `json:"customer_name"`
	SoldAt       time.Time       `json:"sold_at"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

type Dashboard struct {
	Date        string            `json:"date"`
	Weekday     string            `json:"weekday"`
	Time        string            `json:"time"`
	Totals      DashboardTotals   `json:"totals"`
	Change      DayOverDayChange  `json:"change"`
	Trend       []TrendPoint      `json:"trend"`
	TopProducts []ProductQuantity `json:"top_products"`
	LowStock    []StockLevel      `json:"low_stock"`
	RecentSales []SaleSummary     `json:"recent_sales"`
}
