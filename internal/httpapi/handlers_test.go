package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/service"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store/memory"
)

// newTestAPI builds a full API on the seeded in-memory store so handler tests
// exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	clock := time.Date(2024, 5, 2, 14, 30, 0, 0, time.Local)
	svc := service.New(memory.NewSeeded(), nil, service.WithClock(func() time.Time { return clock }))
	return New(svc, nil, "*")
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestAPI(t).Handler()
	doJSON(t, handler, http.MethodGet, "/healthz", nil)

	rec := doJSON(t, handler, http.MethodGet, "/metrics", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pos_http_request_duration_seconds") {
		t.Fatalf("expected request histogram in metrics output")
	}
}

func TestProductEndpoints(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", map[string]any{
		"name":           "Webcam HD",
		"sku":            "CAM-HD-01",
		"category":       "peripherals",
		"purchase_price": "1800",
		"selling_price":  "2499.50",
		"stock":          0,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &created)
	if created.Product.ID == 0 || created.Product.SellingPrice.StringFixed(2) != "2499.50" {
		t.Fatalf("unexpected created product %+v", created.Product)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", map[string]any{
		"name":           "Copy",
		"sku":            "CAM-HD-01",
		"purchase_price": "1",
		"selling_price":  "2",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate sku: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", map[string]any{"name": "", "purchase_price": "1", "selling_price": "2"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products", nil)
	var catalog struct {
		Products []domain.Product `json:"products"`
	}
	decodeBody(t, rec, &catalog)
	if len(catalog.Products) != 7 || catalog.Products[0].ID != created.Product.ID {
		t.Fatalf("expected 7 products newest first, got %d", len(catalog.Products))
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products?view=sale", nil)
	var forSale struct {
		Products []domain.Product `json:"products"`
	}
	decodeBody(t, rec, &forSale)
	for _, p := range forSale.Products {
		if p.ID == created.Product.ID {
			t.Fatalf("out-of-stock product listed for sale")
		}
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products?view=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown view: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/products/1", map[string]any{
		"name":           "USB-C Cable 2m",
		"sku":            "CAB-USB-C",
		"purchase_price": "70",
		"selling_price":  "120",
		"stock":          45,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/1", nil)
	var fetched struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &fetched)
	if fetched.Product.Name != "USB-C Cable 2m" || fetched.Product.Stock != 45 {
		t.Fatalf("unexpected product after update %+v", fetched.Product)
	}

	if rec := doJSON(t, handler, http.MethodGet, "/api/v1/products/999", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing product: expected 404, got %d", rec.Code)
	}
	if rec := doJSON(t, handler, http.MethodGet, "/api/v1/products/abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", rec.Code)
	}
}

func TestCreateSaleJSON(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
		"customer": map[string]string{"name": "Ali", "phone": "0300-1111111", "address": "Lahore"},
		"items":    []map[string]int{{"product_id": 1, "qty": 3}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created struct {
		SaleID  int64  `json:"sale_id"`
		BillURL string `json:"bill_url"`
	}
	decodeBody(t, rec, &created)
	if created.SaleID == 0 || created.BillURL != "/api/v1/sales/1/bill" {
		t.Fatalf("unexpected response %+v", created)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/1", nil)
	var fetched struct {
		Sale domain.Sale `json:"sale"`
	}
	decodeBody(t, rec, &fetched)
	if fetched.Sale.TotalAmount.StringFixed(2) != "300.00" || fetched.Sale.TotalProfit.StringFixed(2) != "120.00" {
		t.Fatalf("unexpected totals %s / %s", fetched.Sale.TotalAmount, fetched.Sale.TotalProfit)
	}
	if len(fetched.Sale.Items) != 1 || fetched.Sale.Items[0].ProductName != "USB Cable" {
		t.Fatalf("unexpected items %+v", fetched.Sale.Items)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/1", nil)
	var product struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &product)
	if product.Product.Stock != 47 {
		t.Fatalf("expected stock 47, got %d", product.Product.Stock)
	}
}

func TestCreateSaleForm(t *testing.T) {
	handler := newTestAPI(t).Handler()

	form := url.Values{}
	form.Set("customer_name", "Sara")
	form.Set("customer_phone", "0321-2222222")
	form.Set("qty_2", "2")
	form.Set("qty_5", "1")
	form.Set("qty_1", "")
	form.Set("qty_3", "abc")
	form.Set("note", "gift wrap")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/1", nil)
	var fetched struct {
		Sale domain.Sale `json:"sale"`
	}
	decodeBody(t, rec, &fetched)
	if len(fetched.Sale.Items) != 2 {
		t.Fatalf("expected two purchased lines, got %+v", fetched.Sale.Items)
	}
	// 2 x 650 + 1 x 950
	if fetched.Sale.TotalAmount.StringFixed(2) != "2250.00" {
		t.Fatalf("unexpected total %s", fetched.Sale.TotalAmount)
	}
	if fetched.Sale.Customer.Phone != "0321-2222222" {
		t.Fatalf("unexpected customer %+v", fetched.Sale.Customer)
	}
}

func TestCreateSaleRejections(t *testing.T) {
	handler := newTestAPI(t).Handler()

	tests := []struct {
		name string
		body any
		want int
	}{
		{name: "empty cart", body: map[string]any{"items": []any{}}, want: http.StatusBadRequest},
		{name: "all zero", body: map[string]any{"items": []map[string]int{{"product_id": 1, "qty": 0}}}, want: http.StatusBadRequest},
		{name: "unknown product", body: map[string]any{"items": []map[string]int{{"product_id": 404, "qty": 1}}}, want: http.StatusNotFound},
		{name: "insufficient stock", body: map[string]any{"items": []map[string]int{{"product_id": 1, "qty": 1}, {"product_id": 4, "qty": 5}}}, want: http.StatusConflict},
		{name: "unknown field", body: map[string]any{"cart": []any{}}, want: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products/1", nil)
	var product struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &product)
	if product.Product.Stock != 50 {
		t.Fatalf("rejected sales changed stock to %d", product.Product.Stock)
	}
	if rec := doJSON(t, handler, http.MethodGet, "/api/v1/sales/1", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected no sale to exist, got %d", rec.Code)
	}
}

func TestSaleBillEscapesCustomer(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
		"customer": map[string]string{"name": "<script>alert(1)</script>", "address": "Shop 4"},
		"items":    []map[string]int{{"product_id": 6, "qty": 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales/1/bill", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Fatalf("expected html bill, got %q", got)
	}
	page := rec.Body.String()
	if strings.Contains(page, "<script>alert(1)</script>") {
		t.Fatalf("customer name was not escaped")
	}
	for _, want := range []string{"Abdullah Tech Shop", "Laptop Stand", "1600.00", "2024-05-02 02:30 PM", "Shop 4"} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected bill to contain %q", want)
		}
	}

	if rec := doJSON(t, handler, http.MethodGet, "/api/v1/sales/77/bill", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing bill: expected 404, got %d", rec.Code)
	}
}

func TestDashboardAndReports(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
		"items": []map[string]int{{"product_id": 1, "qty": 3}, {"product_id": 4, "qty": 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", rec.Code)
	}
	var dashboard domain.Dashboard
	decodeBody(t, rec, &dashboard)
	if dashboard.Date != "2024-05-02" || dashboard.Weekday != "Thursday" {
		t.Fatalf("unexpected date fields %s %s", dashboard.Date, dashboard.Weekday)
	}
	if dashboard.Totals.LifetimeRevenue.StringFixed(2) != "1400.00" {
		t.Fatalf("unexpected lifetime revenue %s", dashboard.Totals.LifetimeRevenue)
	}
	if len(dashboard.Trend) != 1 || len(dashboard.RecentSales) != 1 {
		t.Fatalf("unexpected dashboard lists %+v", dashboard)
	}
	if len(dashboard.LowStock) == 0 || dashboard.LowStock[0].Name != "HDMI Adapter" || dashboard.LowStock[0].Stock != 2 {
		t.Fatalf("expected HDMI adapter to be scarcest, got %+v", dashboard.LowStock)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/top-products?limit=1", nil)
	var top struct {
		TopProducts []domain.ProductQuantity `json:"top_products"`
	}
	decodeBody(t, rec, &top)
	if len(top.TopProducts) != 1 || top.TopProducts[0].ProductID != 1 || top.TopProducts[0].Quantity != 3 {
		t.Fatalf("unexpected top products %+v", top.TopProducts)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/low-stock?threshold=5", nil)
	var low struct {
		LowStock []domain.StockLevel `json:"low_stock"`
	}
	decodeBody(t, rec, &low)
	if len(low.LowStock) != 1 {
		t.Fatalf("expected one product under 5, got %+v", low.LowStock)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/day-over-day", nil)
	var change domain.DayOverDayChange
	decodeBody(t, rec, &change)
	if change.RevenueChangePct != 0 || change.TodayRevenue.StringFixed(2) != "1400.00" {
		t.Fatalf("unexpected change %+v", change)
	}

	for _, path := range []string{"/api/v1/reports/totals", "/api/v1/reports/trend?days=30", "/api/v1/reports/recent-sales"} {
		if rec := doJSON(t, handler, http.MethodGet, path, nil); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("%w: name is required", store.ErrValidation), want: http.StatusBadRequest},
		{err: store.ErrEmptyCart, want: http.StatusBadRequest},
		{err: fmt.Errorf("%w: product 9", store.ErrNotFound), want: http.StatusNotFound},
		{err: store.ErrDuplicateSKU, want: http.StatusConflict},
		{err: &store.InsufficientStockError{ProductID: 1, Requested: 2}, want: http.StatusConflict},
		{err: errors.New("connection reset"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

// brokenSales fails every sale lookup the way a dropped database connection
// would.
type brokenSales struct {
	*memory.Store
}

func (brokenSales) GetSale(context.Context, int64) (*domain.Sale, error) {
	return nil, errors.New("pq: connection reset by peer")
}

func TestInternalErrorLogsThroughComponentLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	svc := service.New(brokenSales{Store: memory.NewSeeded()}, nil)
	handler := New(svc, logger, "*").Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales/1", nil)
	req.Header.Set("X-Request-ID", "till-3-0107")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Fatalf("driver error leaked into body: %s", rec.Body.String())
	}

	var entry map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var candidate map[string]any
		if err := json.Unmarshal([]byte(line), &candidate); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if candidate["msg"] == "internal error" {
			entry = candidate
		}
	}
	if entry == nil {
		t.Fatalf("no internal error entry in logs: %s", logs.String())
	}
	if entry["component"] != "http" {
		t.Fatalf("expected component=http, got %v", entry["component"])
	}
	if entry["request_id"] != "till-3-0107" {
		t.Fatalf("expected request id till-3-0107, got %v", entry["request_id"])
	}
	if !strings.Contains(fmt.Sprint(entry["error"]), "connection reset") {
		t.Fatalf("expected driver error in log, got %v", entry["error"])
	}
}
