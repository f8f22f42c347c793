// Package metrics provides Prometheus instrumentation for the ledger service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesOpened counts filled opens by mode, symbol and side.
	TradesOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradeledger_trades_opened_total",
		Help: "Total number of trades opened",
	}, []string{"mode", "symbol", "side"})

	// TradesClosed counts settlements by mode and close reason.
	TradesClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradeledger_trades_closed_total",
		Help: "Total number of trades closed",
	}, []string{"mode", "reason"})

	// AdmissionRejections counts opens refused for insufficient balance.
	AdmissionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradeledger_admission_rejections_total",
		Help: "Trades rejected for insufficient balance",
	}, []string{"mode"})

	// PriceErrors counts failed quote lookups.
	PriceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradeledger_price_errors_total",
		Help: "Quote lookups that failed",
	}, []string{"mode", "symbol"})

	TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradeledger_tick_duration_seconds",
		Help:    "Duration of a mark-to-market pass over all users",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	OpenPositions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradeledger_open_positions",
		Help: "Open positions observed during the last tick",
	}, []string{"mode"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradeledger_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradeledger_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradeledger_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP records one finished request.
func ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		ObserveHTTP(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
