package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsCollector owns the API's prometheus registry and counters.
type metricsCollector struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      prometheus.Histogram
	logins        prometheus.Counter
	usersCreated  prometheus.Counter
	adminResets   prometheus.Counter
	resetRequests prometheus.Counter
}

func newMetricsCollector() *metricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &metricsCollector{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_http_requests_total",
			Help: "HTTP requests handled, by method and status.",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatehouse_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_logins_total",
			Help: "Successful logins.",
		}),
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_users_created_total",
			Help: "Users created through the admin API.",
		}),
		adminResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_admin_password_resets_total",
			Help: "Admin-issued password resets.",
		}),
		resetRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_forgot_requests_total",
			Help: "Forgot-password requests recorded.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.logins, m.usersCreated, m.adminResets, m.resetRequests)
	return m
}

// instrument is a chi middleware recording request counts and latency.
func (m *metricsCollector) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		m.requests.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
		m.duration.Observe(time.Since(start).Seconds())
	})
}

// MetricsHandler exposes the API's prometheus registry.
func (a *API) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.metrics.registry, promhttp.HandlerOpts{})
}
