package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/aether/internal/chat"
	"github.com/flemzord/aether/internal/completion"
	"github.com/flemzord/aether/internal/conversation"
	"github.com/flemzord/aether/internal/core"
	"github.com/flemzord/aether/internal/provider"
	"github.com/flemzord/aether/internal/provider/providertest"
	"github.com/flemzord/aether/internal/security"
	"github.com/flemzord/aether/internal/security/securitytest"
	"github.com/flemzord/aether/internal/store/storetest"
	"gopkg.in/yaml.v3"
)

// fakeLLM answers every message with reply, or fails with err.
type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeLLM) Complete(_ context.Context, _ string, _ []conversation.Turn, message string) (completion.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return completion.Reply{}, f.err
	}
	reply := f.reply
	if reply == "" {
		reply = "echo: " + message
	}
	return completion.Reply{Content: reply, Provider: "fake"}, nil
}

func (f *fakeLLM) set(reply string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply, f.err = reply, err
}

func (f *fakeLLM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	gw      *Gateway
	handler http.Handler
	llm     *fakeLLM
	mock    *providertest.MockProvider
	chain   *provider.Chain
	store   *storetest.Memory
	audit   func() []security.AuditEvent
}

type testOption func(*Gateway, *security.Guard)

func withAuth(a AuthConfig) testOption {
	return func(g *Gateway, _ *security.Guard) { g.config.Auth = a }
}

func withLimits(cfg security.RateLimitConfig, maxBytes int) testOption {
	return func(_ *Gateway, guard *security.Guard) {
		guard.Limiter = security.NewRateLimiter(cfg)
		guard.MaxMessageBytes = maxBytes
	}
}

func newTestEnv(t *testing.T, opts ...testOption) *testEnv {
	t.Helper()

	auditLogger, audited := securitytest.NewTestAuditLogger()
	guard := &security.Guard{Audit: auditLogger}
	g := &Gateway{}
	for _, opt := range opts {
		opt(g, guard)
	}

	appCtx := core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir())
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	llm := &fakeLLM{}
	st := storetest.NewMemory()
	svc, err := chat.Open(t.Context(), st, chat.Options{
		Completer: llm,
		Notifier:  g.hub,
	})
	if err != nil {
		t.Fatalf("chat.Open: %v", err)
	}

	mock := &providertest.MockProvider{Reply: "ok"}
	chain, err := provider.NewChain([]provider.ChainEntry{{
		Name:     "mock",
		Provider: mock,
		Health:   provider.HealthConfig{InitialBackoff: time.Minute},
	}})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	appCtx.RegisterService(chat.ServiceKey, svc)
	appCtx.RegisterService("provider.chain", chain)
	appCtx.RegisterService(security.GuardService, guard)
	if err := g.resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	return &testEnv{
		gw:      g,
		handler: g.buildRouter(),
		llm:     llm,
		mock:    mock,
		chain:   chain,
		store:   st,
		audit:   audited,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body url.Values, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) submit(t *testing.T, msg string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/", url.Values{"message": {msg}}, nil)
}

func mustYAMLNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if len(doc.Content) == 0 {
		t.Fatal("empty YAML document")
	}
	return doc.Content[0]
}
