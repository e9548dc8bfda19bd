// Package app assembles and runs the aether application: configuration,
// logging, security, telemetry, modules, and the chat service wired between
// them.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flemzord/aether/internal/chat"
	"github.com/flemzord/aether/internal/config"
	"github.com/flemzord/aether/internal/core"
	"github.com/flemzord/aether/internal/security"
	"github.com/flemzord/aether/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// RunParams configures the application.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file. If
	// empty, config.FindConfig picks one, falling back to the embedded
	// default.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Instance is a built, not yet started application.
type Instance struct {
	App        *core.App
	Context    *core.AppContext
	Chat       *chat.Service
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger

	telemetry *telemetry.Telemetry
	closers   []io.Closer
	started   bool
}

// Build loads and validates the configuration, then provisions every module
// and wires the chat service. Nothing listens until Start.
func Build(ctx context.Context, params RunParams) (_ *Instance, err error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		cfgPath = config.FindConfig()
	}
	cfg, err := config.LoadFrom(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	credStore := security.NewCredentialStore()
	redactor := security.NewRedactor()

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	inner := slog.NewTextHandler(out, &slog.HandlerOptions{Level: params.LogLevel})
	logger := slog.New(security.NewRedactingHandler(inner, redactor))

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	inst := &Instance{
		Config:     cfg,
		ConfigPath: cfgPath,
		Logger:     logger,
	}
	defer func() {
		if err != nil {
			inst.release()
		}
	}()

	auditLogger, err := inst.openAudit(cfg.Security.AuditLog, dataDir, redactor)
	if err != nil {
		return nil, err
	}
	guard := &security.Guard{
		Limiter:         security.NewRateLimiter(cfg.Security.RateLimits),
		Audit:           auditLogger,
		MaxMessageBytes: cfg.Security.MaxMessageBytes,
	}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, params.Version, logger)
	if err != nil {
		return nil, err
	}
	inst.telemetry = tel

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.CredentialsService, credStore)
	appCtx.RegisterService(security.GuardService, guard)
	appCtx.RegisterService(telemetry.RegistryService, tel.Registry)
	appCtx.RegisterService(telemetry.TracerProviderService, tel.TracerProvider)
	appCtx.RegisterService("config.path", cfgPath)
	inst.Context = appCtx

	application := core.NewApp(appCtx)
	if err := application.LoadModules(config.LoadOrder(cfg)); err != nil {
		return nil, err
	}
	inst.App = application

	// Providers record their API keys while provisioning.
	redactor.SyncCredentials(credStore)

	svc, err := wire(ctx, application, appCtx, cfg, tel, auditLogger)
	if err != nil {
		application.Discard()
		return nil, err
	}
	inst.Chat = svc
	return inst, nil
}

// openAudit opens the JSONL audit log. A relative path is resolved against
// dataDir and an empty one disables the file.
func (in *Instance) openAudit(path, dataDir string, redactor *security.Redactor) (*security.AuditLogger, error) {
	cfg := security.AuditLoggerConfig{Redactor: redactor}
	if path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(dataDir, path)
		}
		f, err := security.OpenAuditFile(path)
		if err != nil {
			return nil, err
		}
		in.closers = append(in.closers, f)
		cfg.Writer = f
	}
	return security.NewAuditLogger(cfg), nil
}

// Start starts every module in load order.
func (in *Instance) Start() error {
	if err := in.App.Start(); err != nil {
		in.release()
		return err
	}
	in.started = true
	in.Logger.Info("aether started", "config", in.ConfigPath, "data_dir", in.Context.DataDir)
	return nil
}

// Shutdown stops every module in reverse order and flushes telemetry.
func (in *Instance) Shutdown() {
	switch {
	case in.App == nil:
	case in.started:
		in.App.Stop()
	default:
		in.App.Discard()
	}
	in.release()
}

func (in *Instance) release() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := in.telemetry.Shutdown(ctx); err != nil {
		in.Logger.Warn("telemetry shutdown", "error", err)
	}
	in.telemetry = nil

	var errs []error
	for _, c := range in.closers {
		errs = append(errs, c.Close())
	}
	in.closers = nil
	if err := errors.Join(errs...); err != nil {
		in.Logger.Warn("closing resources", "error", err)
	}
}

// Run builds and starts the application, then blocks until SIGINT or
// SIGTERM.
func Run(params RunParams) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, params)
}

// RunContext is Run with the shutdown signal supplied by ctx.
func RunContext(ctx context.Context, params RunParams) error {
	inst, err := Build(ctx, params)
	if err != nil {
		return err
	}
	if err := inst.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	inst.Logger.Info("shutdown signal received")
	inst.Shutdown()
	inst.Logger.Info("shutdown complete")
	return nil
}

// Check builds the application without starting it and returns the loaded
// module IDs.
func Check(ctx context.Context, params RunParams) ([]string, error) {
	if params.LogOutput == nil {
		params.LogOutput = io.Discard
	}
	inst, err := Build(ctx, params)
	if err != nil {
		return nil, err
	}
	defer inst.Shutdown()

	ids := config.LoadOrder(inst.Config)
	if inst.Config.Backup.Schedule != "" {
		ids = append(ids, backupModuleID)
	}
	return ids, nil
}

// DefaultDataDir returns $XDG_DATA_HOME/aether, or ~/.local/share/aether.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "aether")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".aether")
	}
	return filepath.Join(home, ".local", "share", "aether")
}
