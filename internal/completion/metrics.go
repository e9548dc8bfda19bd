package completion

import (
	"context"
	"errors"
	"time"

	"github.com/flemzord/aether/internal/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call outcomes, used as the "outcome" metric label.
const (
	OutcomeSuccess  = "success"
	OutcomeTimeout  = "timeout"
	OutcomeEmpty    = "empty"
	OutcomeCanceled = "canceled"
	OutcomeError    = "error"
)

// Metrics holds the Prometheus collectors for completion calls. A nil
// *Metrics records nothing.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration prometheus.Histogram
	tokens   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aether",
			Subsystem: "completion",
			Name:      "calls_total",
			Help:      "Completion calls by outcome and provider.",
		}, []string{"outcome", "provider"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aether",
			Subsystem: "completion",
			Name:      "duration_seconds",
			Help:      "Completion call latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aether",
			Subsystem: "completion",
			Name:      "tokens_total",
			Help:      "Tokens consumed by successful completions.",
		}, []string{"type"}),
	}
}

func (m *Metrics) observe(outcome, providerName string, latency time.Duration, usage provider.TokenUsage) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(outcome, providerName).Inc()
	m.duration.Observe(latency.Seconds())
	if usage.PromptTokens > 0 {
		m.tokens.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		m.tokens.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrEmptyReply):
		return OutcomeEmpty
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
