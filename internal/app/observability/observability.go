package observability

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "quizbank"

// Collector records request metrics and writes one log line per request.
type Collector struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	importRows *prometheus.CounterVec
	log        *logrus.Entry
}

// NewCollector registers the service metrics on a private registry. db may
// be nil, in which case no pool gauges are exported.
func NewCollector(db *sql.DB, log *logrus.Entry) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Bulk import rows by outcome.",
		}, []string{"outcome"}),
		log: log,
	}
	c.registry.MustRegister(c.requests, c.latency, c.importRows)
	c.registry.MustRegister(collectors.NewGoCollector())
	if db != nil {
		c.registry.MustRegister(collectors.NewDBStatsCollector(db, namespace))
	}
	return c
}

// ObserveImportRow counts one bulk import row.
func (c *Collector) ObserveImportRow(outcome string) {
	c.importRows.WithLabelValues(outcome).Inc()
}

func (c *Collector) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type fieldsKey struct{}

type requestFields struct {
	mu     sync.Mutex
	fields logrus.Fields
}

// Annotate adds a field to the current request's log line. It is a no-op
// outside Collector.Middleware.
func Annotate(ctx context.Context, key string, value any) {
	rf, ok := ctx.Value(fieldsKey{}).(*requestFields)
	if !ok {
		return
	}
	rf.mu.Lock()
	rf.fields[key] = value
	rf.mu.Unlock()
}

func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rf := &requestFields{fields: logrus.Fields{}}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), fieldsKey{}, rf)))

		elapsed := time.Since(start)
		route := routeLabel(r)
		c.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		c.latency.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		rf.mu.Lock()
		fields := logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"route":      route,
			"status":     rec.status,
			"latency_ms": float64(elapsed.Microseconds()) / 1000.0,
			"remote_ip":  strings.TrimSpace(r.RemoteAddr),
		}
		for k, v := range rf.fields {
			fields[k] = v
		}
		rf.mu.Unlock()
		c.log.WithFields(fields).Info("request")
	})
}

// routeLabel prefers the matched chi pattern so ids do not explode the
// label set.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return normalizedPath(r.URL.Path)
}

func normalizedPath(path string) string {
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := uuid.Parse(p); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
