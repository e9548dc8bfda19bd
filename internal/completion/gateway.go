// Package completion is the boundary to the hosted text-generation service.
// It turns a system prompt, prior turns and a new message into one bounded
// provider call.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/aether/internal/conversation"
	"github.com/flemzord/aether/internal/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Defaults applied by Config.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 300
	DefaultTimeout     = 30 * time.Second
)

const tracerName = "github.com/flemzord/aether/internal/completion"

// Sentinel errors.
var (
	// ErrTimeout indicates the call did not finish within Config.Timeout.
	ErrTimeout = errors.New("completion: timed out")

	// ErrEmptyReply indicates the service answered with no text.
	ErrEmptyReply = errors.New("completion: empty reply")
)

// Completer is the provider surface the gateway calls. *provider.Chain
// implements it.
type Completer interface {
	Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
}

// Config holds the fixed request parameters.
type Config struct {
	// Temperature defaults to 0.7 when nil.
	Temperature *float64

	// MaxTokens defaults to 300.
	MaxTokens int

	// Timeout bounds each call. Defaults to 30s.
	Timeout time.Duration
}

func (c *Config) defaults() {
	if c.Temperature == nil {
		t := DefaultTemperature
		c.Temperature = &t
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Reply is a successful completion.
type Reply struct {
	Content  string
	Provider string
	Usage    provider.TokenUsage
	Latency  time.Duration
}

// Gateway sends completion requests through a Completer.
type Gateway struct {
	completer Completer
	cfg       Config
	tracer    trace.Tracer
	metrics   *Metrics
	logger    *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) { g.tracer = tp.Tracer(tracerName) }
}

// WithMetrics records every call in m.
func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates a Gateway.
func New(c Completer, cfg Config, opts ...Option) *Gateway {
	cfg.defaults()
	g := &Gateway{
		completer: c,
		cfg:       cfg,
		tracer:    otel.Tracer(tracerName),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the effective configuration.
func (g *Gateway) Config() Config {
	return g.cfg
}

// BuildMessages returns the ordered message list: one system message, the
// history in original order, then the new user message. An empty system
// prompt is omitted.
func BuildMessages(system string, history []conversation.Turn, message string) []provider.Message {
	msgs := make([]provider.Message, 0, len(history)+2)
	if system != "" {
		msgs = append(msgs, provider.Message{Role: provider.MessageRoleSystem, Content: system})
	}
	for _, t := range history {
		msgs = append(msgs, provider.Message{Role: provider.MessageRole(t.Role), Content: t.Content})
	}
	return append(msgs, provider.Message{Role: provider.MessageRoleUser, Content: message})
}

// Complete asks the service for the reply to message given system and
// history. Expiry of the configured timeout yields ErrTimeout; cancellation
// of ctx yields ctx's error.
func (g *Gateway) Complete(ctx context.Context, system string, history []conversation.Turn, message string) (Reply, error) {
	ctx, span := g.tracer.Start(ctx, "completion.Complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("completion.history_turns", len(history)),
			attribute.Int("completion.max_tokens", g.cfg.MaxTokens),
			attribute.Float64("completion.temperature", *g.cfg.Temperature),
		),
	)
	defer span.End()

	tctx, cancel := context.WithTimeoutCause(ctx, g.cfg.Timeout, ErrTimeout)
	defer cancel()

	start := time.Now()
	resp, err := g.completer.Complete(tctx, provider.CompletionRequest{
		Messages:    BuildMessages(system, history, message),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	latency := time.Since(start)

	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		if ctx.Err() == nil && errors.Is(context.Cause(tctx), ErrTimeout) {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, g.cfg.Timeout, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.metrics.observe(outcomeOf(err), resp.Provider, latency, provider.TokenUsage{})
		g.logger.Warn("completion failed", "error", err, "latency", latency)
		return Reply{}, err
	}

	span.SetAttributes(
		attribute.String("completion.provider", resp.Provider),
		attribute.Int("completion.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("completion.completion_tokens", resp.Usage.CompletionTokens),
		attribute.String("completion.finish_reason", string(resp.FinishReason)),
	)
	g.metrics.observe(OutcomeSuccess, resp.Provider, latency, resp.Usage)
	g.logger.Debug("completion succeeded",
		"provider", resp.Provider,
		"latency", latency,
		"tokens", resp.Usage.TotalTokens,
	)

	return Reply{
		Content:  resp.Content,
		Provider: resp.Provider,
		Usage:    resp.Usage,
		Latency:  latency,
	}, nil
}
