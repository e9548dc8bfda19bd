// Package jsonstore implements the store.json module: each document is a
// pretty-printed JSON file replaced atomically on save.
package jsonstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/flemzord/aether/internal/core"
	"github.com/flemzord/aether/internal/store"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ store.Store       = (*Module)(nil)
)

// Module is the store.json module.
type Module struct {
	config Config
	logger *slog.Logger

	// mu serializes writers; readers rely on rename atomicity.
	mu sync.Mutex
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.json",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("store.json: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	if m.config.Dir == "" {
		m.config.Dir = ctx.DataDir
	}
	if err := os.MkdirAll(m.config.Dir, 0o700); err != nil {
		return fmt.Errorf("store.json: create directory %s: %w", m.config.Dir, err)
	}

	ctx.RegisterService(store.Service, m)
	m.logger.Info("json store provisioned", "dir", m.config.Dir)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Open returns a store rooted at dir, creating it if needed. It is the
// module without the lifecycle, for tools and tests.
func Open(dir string) (*Module, error) {
	m := &Module{config: Config{Dir: dir}, logger: slog.New(slog.DiscardHandler)}
	m.config.defaults()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store.json: create directory %s: %w", dir, err)
	}
	return m, nil
}

// Load implements store.Store.
func (m *Module) Load(_ context.Context, kind store.Kind) ([]byte, error) {
	data, err := os.ReadFile(m.path(kind))
	if errors.Is(err, fs.ErrNotExist) && kind == store.KindConversations {
		data, err = m.loadLegacy()
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store.json: read %s: %w", kind, err)
	}
	return data, nil
}

func (m *Module) loadLegacy() ([]byte, error) {
	if m.config.LegacyHistory == "-" {
		return nil, fs.ErrNotExist
	}
	p := m.config.LegacyHistory
	if !filepath.IsAbs(p) {
		p = filepath.Join(m.config.Dir, p)
	}
	data, err := os.ReadFile(p)
	if err == nil {
		m.logger.Info("loading legacy chat history", "path", p)
	}
	return data, err
}

// Save implements store.Store. The document is written to a temporary file
// in the same directory, synced, and renamed over the previous version.
func (m *Module) Save(_ context.Context, kind store.Kind, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := writeFileAtomic(m.path(kind), data); err != nil {
		return fmt.Errorf("store.json: write %s: %w", kind, err)
	}
	return nil
}

func (m *Module) path(kind store.Kind) string {
	return filepath.Join(m.config.Dir, string(kind)+".json")
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return err
	}

	// Persist the rename itself.
	if d, derr := os.Open(dir); derr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
