package gateway

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/flemzord/aether/internal/core"
)

func TestGateway_ModuleInfo(t *testing.T) {
	t.Parallel()

	info := (&Gateway{}).ModuleInfo()
	if info.ID != "gateway.http" {
		t.Errorf("ID = %q, want %q", info.ID, "gateway.http")
	}
	if _, ok := info.New().(*Gateway); !ok {
		t.Error("New() should return *Gateway")
	}
}

func TestGateway_ConfigureDefaults(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "{}")); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "127.0.0.1:5000" {
		t.Errorf("Bind = %q, want default", g.config.Bind)
	}
	if g.config.WriteTimeout != 90*time.Second {
		t.Errorf("WriteTimeout = %v, want 90s", g.config.WriteTimeout)
	}
	if g.config.Title == "" {
		t.Error("Title should have a default")
	}
}

func TestGateway_ConfigureCustom(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	node := mustYAMLNode(t, `
bind: "0.0.0.0:9090"
title: "Study Buddy"
read_timeout: 5s
auth:
  bearer_token: "my-token"
`)
	if err := g.Configure(node); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if g.config.Bind != "0.0.0.0:9090" || g.config.Title != "Study Buddy" {
		t.Errorf("config = %+v", g.config)
	}
	if g.config.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", g.config.ReadTimeout)
	}
	if !g.config.Auth.IsConfigured() {
		t.Error("auth should be configured")
	}
}

func TestGateway_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{Bind: "127.0.0.1:0"}},
		{name: "bad bind", cfg: Config{Bind: "not-an-address"}, wantErr: true},
		{name: "half basic auth", cfg: Config{Bind: "127.0.0.1:0", Auth: AuthConfig{BasicUser: "admin"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := &Gateway{config: tt.cfg}
			if err := g.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGateway_StartRequiresChat(t *testing.T) {
	t.Parallel()

	g := &Gateway{config: Config{Bind: "127.0.0.1:0"}}
	if err := g.Provision(core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir())); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := g.Start(); err == nil {
		t.Fatal("Start without chat service should fail")
	}
}

func TestGateway_ResolveIsIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	metrics := env.gw.metrics
	if err := env.gw.resolve(); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if env.gw.metrics != metrics {
		t.Error("resolve rebuilt the gateway metrics")
	}
}

func TestGateway_StartStop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.gw.config.Bind = "127.0.0.1:0"
	if err := env.gw.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.gw.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if env.gw.hub.add(&wsClient{send: make(chan []byte), done: make(chan struct{})}) {
		t.Error("hub accepted a client after Stop")
	}
}
