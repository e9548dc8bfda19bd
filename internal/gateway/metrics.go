package gateway

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks gateway traffic. Counters feed both Prometheus and the
// /status snapshot; the atomics keep the snapshot lock-free.
type Metrics struct {
	messages  atomic.Int64
	errors    atomic.Int64
	limited   atomic.Int64
	requests  atomic.Int64
	wsClients prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	submissions  *prometheus.CounterVec
}

// NewMetrics creates the gateway collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aether",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aether",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aether",
			Subsystem: "chat",
			Name:      "submissions_total",
			Help:      "Submitted messages by result.",
		}, []string{"result"}),
		wsClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "aether",
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Connected websocket clients.",
		}),
	}
}

// Submission results.
const (
	resultOK       = "ok"
	resultSkipped  = "skipped"
	resultRejected = "rejected"
	resultLimited  = "rate_limited"
	resultFailed   = "failed"
)

// RecordSubmission records the result of a submitted message.
func (m *Metrics) RecordSubmission(result string) {
	switch result {
	case resultOK:
		m.messages.Add(1)
	case resultFailed:
		m.errors.Add(1)
	case resultLimited:
		m.limited.Add(1)
	}
	m.submissions.WithLabelValues(result).Inc()
}

// middleware records every request under its chi route pattern.
func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routePattern(r)
		m.requests.Add(1)
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack supports the websocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("gateway: response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// Snapshot returns a consistent point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Requests:    m.requests.Load(),
		Messages:    m.messages.Load(),
		Errors:      m.errors.Load(),
		RateLimited: m.limited.Load(),
	}
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Requests    int64 `json:"requests"`
	Messages    int64 `json:"messages"`
	Errors      int64 `json:"errors"`
	RateLimited int64 `json:"rate_limited"`
}
