package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flemzord/aether/internal/conversation"
	"github.com/flemzord/aether/internal/provider"
	"github.com/flemzord/aether/internal/provider/providertest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestBuildMessages(t *testing.T) {
	t.Parallel()

	history := []conversation.Turn{
		{Role: conversation.RoleUser, Content: "q1"},
		{Role: conversation.RoleAssistant, Content: "a1"},
	}
	msgs := BuildMessages("sys", history, "q2")

	want := []provider.Message{
		{Role: provider.MessageRoleSystem, Content: "sys"},
		{Role: provider.MessageRoleUser, Content: "q1"},
		{Role: provider.MessageRoleAssistant, Content: "a1"},
		{Role: provider.MessageRoleUser, Content: "q2"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("len = %d, want %d", len(msgs), len(want))
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("msgs[%d] = %+v, want %+v", i, msgs[i], want[i])
		}
	}

	if got := BuildMessages("", nil, "hi"); len(got) != 1 || got[0].Role != provider.MessageRoleUser {
		t.Errorf("without system = %+v", got)
	}
}

func TestComplete_FixedParameters(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{Reply: "pong"}
	g := New(mock, Config{})

	reply, err := g.Complete(t.Context(), "sys", nil, "ping")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Content != "pong" {
		t.Errorf("Content = %q", reply.Content)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.MaxTokens != DefaultMaxTokens || req.Temperature == nil || *req.Temperature != DefaultTemperature {
		t.Errorf("request params = max %d, temp %v", req.MaxTokens, req.Temperature)
	}
	if len(req.Messages) != 2 || req.Messages[1].Content != "ping" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestComplete_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fn      func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
		wantErr error
		outcome string
	}{
		{
			name: "empty reply",
			fn: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
				return provider.CompletionResponse{Content: "  \n"}, nil
			},
			wantErr: ErrEmptyReply,
			outcome: OutcomeEmpty,
		},
		{
			name: "provider failure",
			fn: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
				return provider.CompletionResponse{}, provider.ErrAllProviders
			},
			wantErr: provider.ErrAllProviders,
			outcome: OutcomeError,
		},
		{
			name: "timeout",
			fn: func(ctx context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
				<-ctx.Done()
				return provider.CompletionResponse{}, ctx.Err()
			},
			wantErr: ErrTimeout,
			outcome: OutcomeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := prometheus.NewRegistry()
			metrics := NewMetrics(reg)
			g := New(&providertest.MockProvider{CompleteFunc: tt.fn}, Config{Timeout: 20 * time.Millisecond}, WithMetrics(metrics))

			_, err := g.Complete(t.Context(), "", nil, "hi")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := testutil.ToFloat64(metrics.calls.WithLabelValues(tt.outcome, "")); got != 1 {
				t.Errorf("calls{outcome=%s} = %v, want 1", tt.outcome, got)
			}
		})
	}
}

func TestComplete_ParentCancelIsNotTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	mock := &providertest.MockProvider{
		CompleteFunc: func(ctx context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			cancel()
			<-ctx.Done()
			return provider.CompletionResponse{}, ctx.Err()
		},
	}

	_, err := New(mock, Config{Timeout: time.Minute}).Complete(ctx, "", nil, "hi")
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestComplete_MetricsAndSpan(t *testing.T) {
	t.Parallel()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	mock := &providertest.MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{
				Content:  "ok",
				Provider: "groq",
				Usage:    provider.TokenUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
			}, nil
		},
	}
	g := New(mock, Config{}, WithMetrics(metrics), WithTracerProvider(tp))

	reply, err := g.Complete(t.Context(), "sys", nil, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Provider != "groq" || reply.Usage.TotalTokens != 15 {
		t.Errorf("reply = %+v", reply)
	}

	if got := testutil.ToFloat64(metrics.calls.WithLabelValues(OutcomeSuccess, "groq")); got != 1 {
		t.Errorf("success calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.tokens.WithLabelValues("prompt")); got != 12 {
		t.Errorf("prompt tokens = %v, want 12", got)
	}

	spans := sr.Ended()
	if len(spans) != 1 || spans[0].Name() != "completion.Complete" {
		t.Fatalf("spans = %v", spans)
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("successful call marked as error")
	}
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.observe(OutcomeSuccess, "x", time.Second, provider.TokenUsage{PromptTokens: 1})
}
