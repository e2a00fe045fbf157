package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "faucet_build_info",
			Help: "Build information of the faucet gateway",
		},
		[]string{"version", "commit", "ledger"},
	)

	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faucet_claims_total",
			Help: "Total number of claim attempts by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	ClaimDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faucet_claim_duration_seconds",
			Help:    "Duration of claim operations, ledger transaction included",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"operation"},
	)

	DisbursedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faucet_disbursed_amount_total",
			Help: "Total amount disbursed per asset",
		},
		[]string{"asset"},
	)

	PoolsInitializedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faucet_pools_initialized_total",
			Help: "Total number of pool initialization attempts",
		},
		[]string{"status"},
	)

	LedgerConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faucet_ledger_conflicts_total",
			Help: "Total number of optimistic ledger conflicts (each one is retried)",
		},
		[]string{"backend"},
	)

	ThrottledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faucet_http_throttled_total",
			Help: "Total number of HTTP requests rejected by the front throttle",
		},
		[]string{"reason"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faucet_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faucet_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faucet_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
