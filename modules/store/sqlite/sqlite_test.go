package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/flemzord/aether/internal/core"
	"github.com/flemzord/aether/internal/store"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()

	dir := t.TempDir()
	m := &Module{
		config: Config{Path: filepath.Join(dir, "test.db")},
	}

	ctx := core.NewAppContext(nil, dir)
	if err := m.Provision(ctx); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	if svc, ok := ctx.Service(store.Service); !ok || svc.(*Store) != m.Store {
		t.Fatal("module should publish its store")
	}
	return m
}

func TestLoad_NotFound(t *testing.T) {
	m := newTestModule(t)

	for _, kind := range store.Kinds() {
		if _, err := m.Load(t.Context(), kind); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Load(%s) err = %v, want ErrNotFound", kind, err)
		}
	}
}

func TestSaveLoad_Overwrite(t *testing.T) {
	m := newTestModule(t)
	ctx := t.Context()

	if err := m.Save(ctx, store.KindConversations, []byte(`{"version":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(ctx, store.KindConversations, []byte(`{"version":1,"active":"b"}`)); err != nil {
		t.Fatal(err)
	}

	got, err := m.Load(ctx, store.KindConversations)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"version":1,"active":"b"}` {
		t.Errorf("Load = %s", got)
	}

	rev, err := m.Revision(ctx, store.KindConversations)
	if err != nil || rev != 2 {
		t.Errorf("Revision = %d, %v; want 2", rev, err)
	}
	if rev, _ := m.Revision(ctx, store.KindMemory); rev != 0 {
		t.Errorf("unsaved Revision = %d, want 0", rev)
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "aether.db")

	s, err := Open(t.Context(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Save(t.Context(), store.KindMemory, []byte(`{"1":"remember"}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(t.Context(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()

	got, err := s.Load(t.Context(), store.KindMemory)
	if err != nil || string(got) != `{"1":"remember"}` {
		t.Errorf("Load after reopen = %s, %v", got, err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	m := newTestModule(t)

	if err := migrate(t.Context(), m.db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var version int
	if err := m.db.QueryRowContext(t.Context(), "SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != len(migrations) {
		t.Errorf("schema version = %d, want %d", version, len(migrations))
	}
}

func TestMigrate_RejectsNewerSchema(t *testing.T) {
	m := newTestModule(t)

	if _, err := m.db.ExecContext(t.Context(), "INSERT INTO schema_version (version) VALUES (99)"); err != nil {
		t.Fatal(err)
	}
	if err := migrate(t.Context(), m.db); err == nil {
		t.Fatal("expected error for a newer schema")
	}
}

func TestSave_Concurrent(t *testing.T) {
	m := newTestModule(t)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Save(context.Background(), store.KindMemory, []byte(`{}`)); err != nil {
				t.Errorf("Save: %v", err)
			}
		}()
	}
	wg.Wait()

	if rev, _ := m.Revision(t.Context(), store.KindMemory); rev != 20 {
		t.Errorf("Revision = %d, want 20", rev)
	}
}

func TestConfig_Validate(t *testing.T) {
	c := Config{BusyTimeout: -1}
	if err := c.validate(); err == nil {
		t.Fatal("expected error for negative busy_timeout")
	}

	c = Config{}
	c.defaults()
	if !c.walEnabled() || c.BusyTimeout != defaultBusyTimeout {
		t.Errorf("defaults = %+v", c)
	}
}
