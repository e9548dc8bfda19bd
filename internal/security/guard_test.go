package security

import (
	"errors"
	"strings"
	"testing"
)

func TestGuard_Nil(t *testing.T) {
	t.Parallel()

	var g *Guard
	if err := g.Allow(BucketMessage); err != nil {
		t.Errorf("nil Allow = %v", err)
	}
	if err := g.CheckMessage("hello"); err != nil {
		t.Errorf("nil CheckMessage = %v", err)
	}
	g.Log(AuditEvent{Type: EventRateLimit})
}

func TestGuard_CheckMessage(t *testing.T) {
	t.Parallel()

	g := &Guard{MaxMessageBytes: 8}
	if err := g.CheckMessage("short"); err != nil {
		t.Errorf("short message: %v", err)
	}
	if err := g.CheckMessage(strings.Repeat("x", 9)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("long message err = %v, want ErrMessageTooLarge", err)
	}
	if err := g.CheckMessage("\xff"); !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("invalid UTF-8 err = %v, want ErrInvalidEncoding", err)
	}
}

func TestGuard_Allow(t *testing.T) {
	t.Parallel()

	g := &Guard{Limiter: NewRateLimiter(RateLimitConfig{MessagesPerMin: 1})}
	if err := g.Allow(BucketMessage); err != nil {
		t.Fatalf("first Allow = %v", err)
	}
	if err := g.Allow(BucketMessage); !errors.Is(err, ErrRateLimited) {
		t.Errorf("second Allow = %v, want ErrRateLimited", err)
	}
}
