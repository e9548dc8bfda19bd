package security

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newRedactingLogger(buf *bytes.Buffer, r *Redactor) *slog.Logger {
	inner := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewRedactingHandler(inner, r))
}

func TestRedactingHandler(t *testing.T) {
	t.Parallel()

	secret := "gsk_abcdefghijklmnopqrstuvwxyz0123"

	tests := []struct {
		name string
		log  func(*slog.Logger)
	}{
		{"message", func(l *slog.Logger) { l.Info("key is " + secret) }},
		{"attr", func(l *slog.Logger) { l.Info("test", "key", secret) }},
		{"with attrs", func(l *slog.Logger) { l.With("key", secret).Info("test") }},
		{"group", func(l *slog.Logger) { l.Info("test", slog.Group("req", "auth", secret)) }},
		{"error", func(l *slog.Logger) { l.Error("failed", "error", errors.New("bad key "+secret)) }},
		{"with group", func(l *slog.Logger) { l.WithGroup("provider").Info("test", "key", secret) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			tt.log(newRedactingLogger(&buf, NewRedactor()))

			out := buf.String()
			if strings.Contains(out, secret) {
				t.Errorf("secret leaked: %s", out)
			}
			if !strings.Contains(out, RedactPlaceholder) {
				t.Errorf("expected placeholder: %s", out)
			}
		})
	}
}

func TestRedactingHandler_KeepsSafeValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newRedactingLogger(&buf, NewRedactor()).Info("saved", "conversation", "c-1", "turns", 4)

	out := buf.String()
	for _, want := range []string{"conversation=c-1", "turns=4"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}
