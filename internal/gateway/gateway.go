// Package gateway is the HTTP front of aether: the chat page and its form
// routes, live change notifications over a websocket, health and metrics,
// and authenticated admin endpoints. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/aether/internal/chat"
	"github.com/flemzord/aether/internal/core"
	"github.com/flemzord/aether/internal/provider"
	"github.com/flemzord/aether/internal/security"
	"github.com/flemzord/aether/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// EventsService is the AppContext service key of the gateway's *Hub.
const EventsService = "gateway.events"

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Gateway is the gateway.http module.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	hub       *Hub
	page      *pageRenderer
	startedAt time.Time

	// Resolved at Start from the service registry.
	chat     *chat.Service
	chain    *provider.Chain
	guard    *security.Guard
	registry *prometheus.Registry
	tracer   trace.Tracer
	metrics  *Metrics
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The hub is published so the chat
// service can notify open pages.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.hub = NewHub(g.logger.With("component", "hub"))
	page, err := newPageRenderer(g.config.Title)
	if err != nil {
		return err
	}
	g.page = page

	ctx.RegisterService(EventsService, g.hub)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q: %w", g.config.Bind, err)
	}
	if (g.config.Auth.BasicUser == "") != (g.config.Auth.BasicPass == "") {
		return errors.New("gateway: basic auth needs both basic_user and basic_pass")
	}
	return nil
}

// Start implements core.Starter. It resolves its dependencies from the
// service registry and starts the HTTP server.
func (g *Gateway) Start() error {
	if err := g.resolve(); err != nil {
		return err
	}
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", "http://"+ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()
	return nil
}

func (g *Gateway) resolve() error {
	svc, ok := g.appCtx.Service(chat.ServiceKey)
	if !ok {
		return errors.New("gateway: chat service not registered")
	}
	g.chat, ok = svc.(*chat.Service)
	if !ok {
		return fmt.Errorf("gateway: %s has unexpected type %T", chat.ServiceKey, svc)
	}

	// Optional services degrade gracefully when missing.
	if svc, ok := g.appCtx.Service("provider.chain"); ok {
		g.chain, _ = svc.(*provider.Chain)
	}
	if svc, ok := g.appCtx.Service(security.GuardService); ok {
		g.guard, _ = svc.(*security.Guard)
	}
	if svc, ok := g.appCtx.Service(telemetry.RegistryService); ok {
		g.registry, _ = svc.(*prometheus.Registry)
	}
	tp := otel.GetTracerProvider()
	if svc, ok := g.appCtx.Service(telemetry.TracerProviderService); ok {
		if p, ok := svc.(trace.TracerProvider); ok {
			tp = p
		}
	}
	g.tracer = tp.Tracer("github.com/flemzord/aether/internal/gateway")

	if g.registry == nil {
		g.registry = prometheus.NewRegistry()
	}
	if g.metrics == nil {
		g.metrics = NewMetrics(g.registry)
		g.hub.observeCount(func(n int) { g.metrics.wsClients.Set(float64(n)) })
	}
	return nil
}

// Stop implements core.Stopper. Websocket clients are closed first so the
// graceful shutdown does not wait on them.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.hub != nil {
		g.hub.Close()
	}
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
