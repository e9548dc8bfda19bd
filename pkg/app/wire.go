package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/flemzord/aether/internal/chat"
	"github.com/flemzord/aether/internal/completion"
	"github.com/flemzord/aether/internal/config"
	"github.com/flemzord/aether/internal/core"
	"github.com/flemzord/aether/internal/cron"
	"github.com/flemzord/aether/internal/provider"
	"github.com/flemzord/aether/internal/security"
	"github.com/flemzord/aether/internal/store"
	"github.com/flemzord/aether/internal/telemetry"
)

const (
	chainModuleID  core.ModuleID = "provider.chain"
	backupModuleID               = "cron.backup"
)

var errNoStore = errors.New("app: no document store registered")

// chainModule runs the provider chain's health probes inside the app
// lifecycle.
type chainModule struct {
	chain *provider.Chain
}

func (m *chainModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: chainModuleID}
}

func (m *chainModule) Start() error {
	m.chain.Start(context.Background())
	return nil
}

func (m *chainModule) Stop(context.Context) error {
	m.chain.Stop()
	return nil
}

// schedulerModule runs the cron scheduler inside the app lifecycle.
type schedulerModule struct {
	scheduler *cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: backupModuleID}
}

func (m *schedulerModule) Start() error { return m.scheduler.Start() }

func (m *schedulerModule) Stop(ctx context.Context) error { return m.scheduler.Stop(ctx) }

// wire assembles what the configured modules cannot build on their own:
// the provider chain, the completion gateway, the chat service, and the
// optional backup scheduler. It runs after LoadModules and before Start.
func wire(
	ctx context.Context,
	app *core.App,
	appCtx *core.AppContext,
	cfg *config.Config,
	tel *telemetry.Telemetry,
	audit *security.AuditLogger,
) (*chat.Service, error) {
	logger := appCtx.Logger

	chain, err := buildChain(app, cfg, logger.With("component", "provider.chain"))
	if err != nil {
		return nil, err
	}
	appCtx.RegisterService(string(chainModuleID), chain)
	app.AppendModule(chainModuleID, &chainModule{chain: chain})

	st, err := documentStore(appCtx)
	if err != nil {
		return nil, err
	}

	profile := chat.DefaultProfile()
	if cfg.Chat.Profile != nil {
		profile = *cfg.Chat.Profile
	}
	prompt, err := chat.NewPromptBuilder(profile, cfg.Chat.SystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("app: building system prompt: %w", err)
	}

	gw := completion.New(chain, completion.Config{
		Temperature: cfg.Chat.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
		Timeout:     cfg.Chat.Timeout,
	},
		completion.WithTracerProvider(tel.TracerProvider),
		completion.WithMetrics(completion.NewMetrics(tel.Registry)),
		completion.WithLogger(logger.With("component", "completion")),
	)

	var notifier chat.Notifier
	if svc, ok := appCtx.Service("gateway.events"); ok {
		notifier, _ = svc.(chat.Notifier)
	}

	svc, err := chat.Open(ctx, st, chat.Options{
		Completer:     gw,
		Prompt:        prompt,
		Notifier:      notifier,
		Audit:         audit,
		Logger:        logger.With("component", "chat"),
		DefaultTitle:  cfg.Chat.DefaultTitle,
		TitleMaxLen:   cfg.Chat.TitleMaxLen,
		MemoryTrigger: cfg.Chat.MemoryTrigger,
	})
	if err != nil {
		return nil, err
	}
	appCtx.RegisterService(chat.ServiceKey, svc)

	if cfg.Backup.Schedule != "" {
		if err := wireBackup(app, appCtx, cfg.Backup, st); err != nil {
			return nil, err
		}
	}

	stats := svc.Stats()
	logger.Info("chat service ready",
		"conversations", stats.Conversations,
		"memories", stats.Memories,
		"providers", len(chain.Status()),
	)
	return svc, nil
}

// buildChain orders the configured providers with cfg.Chat.Provider first
// and the others as fallbacks in ID order.
func buildChain(app *core.App, cfg *config.Config, logger *slog.Logger) (*provider.Chain, error) {
	ids := config.ModulesIn(cfg, "provider")
	if primary := cfg.Chat.Provider; primary != "" {
		ordered := []string{primary}
		for _, id := range ids {
			if id != primary {
				ordered = append(ordered, id)
			}
		}
		ids = ordered
	}

	entries := make([]provider.ChainEntry, 0, len(ids))
	for _, id := range ids {
		mod, ok := app.Module(id)
		if !ok {
			return nil, fmt.Errorf("app: provider %s not loaded", id)
		}
		p, ok := mod.(provider.Provider)
		if !ok {
			return nil, fmt.Errorf("app: module %s is not a provider", id)
		}
		entry := provider.ChainEntry{Name: id, Provider: p}
		if hc, ok := mod.(provider.HealthConfigurer); ok {
			entry.Health = hc.HealthConfig()
		}
		entries = append(entries, entry)
	}

	chain, err := provider.NewChain(entries, provider.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("app: building provider chain: %w", err)
	}
	logger.Info("provider chain built", "primary", ids[0], "fallbacks", len(ids)-1)
	return chain, nil
}

func documentStore(appCtx *core.AppContext) (store.Store, error) {
	svc, ok := appCtx.Service(store.Service)
	if !ok {
		return nil, errNoStore
	}
	st, ok := svc.(store.Store)
	if !ok {
		return nil, fmt.Errorf("app: service %s is %T, not a store", store.Service, svc)
	}
	return st, nil
}

func wireBackup(app *core.App, appCtx *core.AppContext, cfg config.BackupConfig, st store.Store) error {
	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Join(appCtx.DataDir, "backups")
	}

	logger := appCtx.Logger.With("component", "cron")
	scheduler := cron.NewScheduler(logger)
	err := scheduler.RegisterJob(&cron.BackupJob{
		Store:        st,
		Dir:          dir,
		Keep:         cfg.Keep,
		ScheduleExpr: cfg.Schedule,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("app: registering backup job: %w", err)
	}
	app.AppendModule(backupModuleID, &schedulerModule{scheduler: scheduler})
	return nil
}
