package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/metrics"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/service"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/store"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/xid"
)

const (
	maxBodyBytes   = 1 << 20
	qtyFieldPrefix = "qty_"
)

type API struct {
	service       *service.Service
	logger        *slog.Logger
	allowedOrigin string
}

func New(svc *service.Service, logger *slog.Logger, allowedOrigin string) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		service:       svc,
		logger:        logger.With("component", "http"),
		allowedOrigin: allowedOrigin,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.withMiddleware)
	r.Use(metrics.Middleware(routePattern))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		a.writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		a.writeMethodNotAllowed(w)
	})

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", a.handleListProducts)
		r.Post("/products", a.handleCreateProduct)
		r.Get("/products/{id}", a.handleGetProduct)
		r.Put("/products/{id}", a.handleUpdateProduct)

		r.Post("/sales", a.handleCreateSale)
		r.Get("/sales/{id}", a.handleGetSale)
		r.Get("/sales/{id}/bill", a.handleSaleBill)

		r.Get("/dashboard", a.handleDashboard)
		r.Route("/reports", func(r chi.Router) {
			r.Get("/totals", a.handleTotals)
			r.Get("/day-over-day", a.handleDayOverDay)
			r.Get("/trend", a.handleTrend)
			r.Get("/top-products", a.handleTopProducts)
			r.Get("/low-stock", a.handleLowStock)
			r.Get("/recent-sales", a.handleRecentSales)
		})
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	view := domain.ProductView(strings.TrimSpace(r.URL.Query().Get("view")))
	products, err := a.service.ListProducts(r.Context(), view)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductInput
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}

	product, err := a.service.GetProduct(r.Context(), id)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	if product == nil {
		a.writeError(w, http.StatusNotFound, fmt.Errorf("product %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}

	var req domain.ProductInput
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	product, err := a.service.UpdateProduct(r.Context(), id, req)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

type saleRequest struct {
	Customer domain.Customer   `json:"customer"`
	Items    []domain.CartLine `json:"items"`
}

// handleCreateSale accepts either a JSON body or the shop's form post, where
// each product quantity arrives as a qty_<product id> field.
func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var (
		req saleRequest
		err error
	)
	if isFormRequest(r) {
		req, err = a.decodeSaleForm(r)
	} else {
		err = decodeJSON(r, &req)
		if err != nil {
			err = fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
	}
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}

	saleID, err := a.service.CreateSale(r.Context(), req.Customer, req.Items)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"sale_id":  saleID,
		"bill_url": fmt.Sprintf("/api/v1/sales/%d/bill", saleID),
	})
}

func (a *API) decodeSaleForm(r *http.Request) (saleRequest, error) {
	if err := r.ParseForm(); err != nil {
		return saleRequest{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	raw := make(map[int64]string)
	for key, values := range r.PostForm {
		if !strings.HasPrefix(key, qtyFieldPrefix) || len(values) == 0 {
			continue
		}
		productID, err := strconv.ParseInt(strings.TrimPrefix(key, qtyFieldPrefix), 10, 64)
		if err != nil || productID < 1 {
			a.logger.Debug("ignoring quantity field with malformed product id", "field", key)
			continue
		}
		raw[productID] = values[0]
	}

	lines, err := a.service.ParseCart(raw)
	if err != nil {
		return saleRequest{}, err
	}
	return saleRequest{
		Customer: domain.NewCustomer(r.PostForm.Get("customer_name"), r.PostForm.Get("customer_phone"), r.PostForm.Get("customer_address")),
		Items:    lines,
	}, nil
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}

	sale, err := a.service.GetSale(r.Context(), id)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleSaleBill(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}

	sale, err := a.service.GetSale(r.Context(), id)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}

	page, err := renderBill(*sale)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := a.service.Dashboard(r.Context())
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (a *API) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := a.service.DashboardTotals(r.Context())
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (a *API) handleDayOverDay(w http.ResponseWriter, r *http.Request) {
	change, err := a.service.DayOverDayChange(r.Context())
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

func (a *API) handleTrend(w http.ResponseWriter, r *http.Request) {
	days := parsePositiveLimit(r.URL.Query().Get("days"), service.DefaultTrendDays, 366)
	points, err := a.service.RevenueTrend(r.Context(), days)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trend": points})
}

func (a *API) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), service.DefaultTopProducts, 100)
	rows, err := a.service.TopProducts(r.Context(), limit)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"top_products": rows})
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	threshold := parsePositiveLimit(r.URL.Query().Get("threshold"), 0, 0)
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), service.DefaultLowStockLimit, 100)
	rows, err := a.service.LowStock(r.Context(), threshold, limit)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"low_stock": rows})
}

func (a *API) handleRecentSales(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), service.DefaultRecentSales, 100)
	rows, err := a.service.RecentSales(r.Context(), limit)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recent_sales": rows})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = xid.New("req")
		}
		w.Header().Set("X-Request-ID", requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(startedAt),
		)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation), errors.Is(err, store.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateSKU), errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid id %q", raw))
		return 0, false
	}
	return id, true
}

func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded"
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func (a *API) writeMethodNotAllowed(w http.ResponseWriter) {
	a.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies never carry driver or SQL details; those go to the log.
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("internal error",
			"request_id", w.Header().Get("X-Request-ID"),
			"status", status,
			"error", err,
		)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
