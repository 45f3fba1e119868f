// Package metrics exposes Prometheus instrumentation for the shop backend on
// its own registry. Mount Handler on GET /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pos",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	SalesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "sales_completed_total",
		Help:      "Sales committed to the store.",
	})

	SaleRevenue = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "sale_revenue_total",
		Help:      "Sum of committed sale totals.",
	})

	SalesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "sales_rejected_total",
			Help:      "Sale submissions that were rolled back or refused.",
		},
		[]string{"reason"}, // "empty_cart" | "insufficient_stock" | "not_found" | "validation" | "error"
	)

	DashboardCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "dashboard_cache_total",
			Help:      "Dashboard snapshot lookups by result.",
		},
		[]string{"result"}, // "hit" | "miss" | "error"
	)
)

var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Registry.MustRegister(RequestDuration, SalesCompleted, SaleRevenue, SalesRejected, DashboardCache)
}

func ObserveSale(total float64) {
	SalesCompleted.Inc()
	SaleRevenue.Add(total)
}

func SaleRejected(reason string) {
	SalesRejected.WithLabelValues(reason).Inc()
}

func DashboardLookup(result string) {
	DashboardCache.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request latency. route resolves the label for a served
// request; it runs after the handler so routers can report the matched pattern.
func Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			label := route(r)
			if label == "" {
				label = "unmatched"
			}
			RequestDuration.WithLabelValues(r.Method, label, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
		})
	}
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
