package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors. Each instance owns its registry so
// tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	DBDuration      *prometheus.HistogramVec
	OrdersCreated   *prometheus.CounterVec
	StockRejections prometheus.Counter
	PointsCredited  prometheus.Counter
	PointsDebited   prometheus.Counter
	AIFallbacks     *prometheus.CounterVec
	FeedSubscribers prometheus.Gauge
}

// New registers all collectors under prefix.
func New(prefix string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		DBDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_orders_created_total",
			Help: "Orders created by source",
		}, []string{"source"}),
		StockRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_stock_rejections_total",
			Help: "Checkouts rejected for insufficient stock",
		}),
		PointsCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_loyalty_points_credited_total",
			Help: "Loyalty points credited on delivery",
		}),
		PointsDebited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_loyalty_points_debited_total",
			Help: "Loyalty points debited on redemption",
		}),
		AIFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_ai_fallbacks_total",
			Help: "AI requests answered with a canned fallback",
		}, []string{"operation"}),
		FeedSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_feed_subscribers",
			Help: "Open change feed subscriptions",
		}),
	}
	reg.MustRegister(
		m.HTTPRequests, m.HTTPDuration, m.DBDuration, m.OrdersCreated,
		m.StockRejections, m.PointsCredited, m.PointsDebited, m.AIFallbacks,
		m.FeedSubscribers,
	)
	return m
}

// TrackDB returns a function that records the duration since start for operation.
//
//	defer m.TrackDB("orders.create")(time.Now())
func (m *Metrics) TrackDB(operation string) func(start time.Time) {
	return func(start time.Time) {
		if m == nil {
			return
		}
		m.DBDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// The helpers below are no-ops on a nil *Metrics so components can run
// without instrumentation in tests.

func (m *Metrics) OrderCreated(source string) {
	if m != nil {
		m.OrdersCreated.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) StockRejected() {
	if m != nil {
		m.StockRejections.Inc()
	}
}

func (m *Metrics) PointsMoved(credited, debited int) {
	if m == nil {
		return
	}
	m.PointsCredited.Add(float64(credited))
	m.PointsDebited.Add(float64(debited))
}

func (m *Metrics) AIFallback(operation string) {
	if m != nil {
		m.AIFallbacks.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) FeedSubscribed(delta float64) {
	if m != nil {
		m.FeedSubscribers.Add(delta)
	}
}

// Middleware records request count and latency by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)
		m.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
