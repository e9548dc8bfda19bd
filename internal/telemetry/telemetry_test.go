package telemetry

import (
	"log/slog"
	"testing"

	"github.com/flemzord/aether/internal/config"
)

func TestSetup_WithoutEndpoint(t *testing.T) {
	tel, err := Setup(t.Context(), config.TelemetryConfig{}, "test", slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { _ = tel.Shutdown(t.Context()) })

	families, err := tel.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected runtime collectors to be registered")
	}

	_, span := tel.TracerProvider.Tracer("test").Start(t.Context(), "op")
	if !span.SpanContext().IsValid() {
		t.Error("expected a recording span with full sampling")
	}
	span.End()
}

func TestSampleRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want float64
	}{
		{0, 1},
		{-1, 1},
		{0.25, 0.25},
		{1, 1},
	}
	for _, tt := range tests {
		if got := sampleRatio(config.TelemetryConfig{SampleRatio: tt.in}); got != tt.want {
			t.Errorf("sampleRatio(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestShutdown_Nil(t *testing.T) {
	t.Parallel()

	var tel *Telemetry
	if err := tel.Shutdown(t.Context()); err != nil {
		t.Errorf("Shutdown on nil = %v", err)
	}
}
