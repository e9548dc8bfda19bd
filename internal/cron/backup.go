package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/flemzord/aether/internal/store"
)

// Backup defaults.
const (
	DefaultBackupSchedule = "0 3 * * *"
	DefaultBackupKeep     = 7
)

const snapshotLayout = "20060102T150405.000Z"

// BackupJob copies every stored document into Dir as
// "<kind>-<timestamp>.json" and keeps the newest Keep snapshots per kind.
type BackupJob struct {
	Store        store.Store
	Dir          string
	Keep         int    // <= 0 means DefaultBackupKeep
	ScheduleExpr string // empty means DefaultBackupSchedule
	Logger       *slog.Logger

	now func() time.Time
}

var _ Job = (*BackupJob)(nil)

// Name implements Job.
func (j *BackupJob) Name() string { return "backup" }

// Schedule implements Job.
func (j *BackupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultBackupSchedule
}

// Run snapshots each document kind. Kinds that were never saved are
// skipped. Errors for one kind do not stop the others.
func (j *BackupJob) Run(ctx context.Context) error {
	if err := os.MkdirAll(j.Dir, 0o700); err != nil {
		return fmt.Errorf("cron: creating backup dir: %w", err)
	}

	stamp := j.clock().UTC().Format(snapshotLayout)
	var errs []error
	for _, kind := range store.Kinds() {
		if err := ctx.Err(); err != nil {
			return err
		}
		written, err := j.snapshot(ctx, kind, stamp)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !written {
			continue
		}
		if err := j.prune(kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (j *BackupJob) snapshot(ctx context.Context, kind store.Kind, stamp string) (bool, error) {
	data, err := j.Store.Load(ctx, kind)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cron: loading %s: %w", kind, err)
	}

	path := filepath.Join(j.Dir, string(kind)+"-"+stamp+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return false, fmt.Errorf("cron: writing %s snapshot: %w", kind, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("cron: writing %s snapshot: %w", kind, err)
	}
	j.logger().Info("cron: document backed up", "kind", kind, "path", path, "bytes", len(data))
	return true, nil
}

// prune removes the oldest snapshots of kind beyond Keep. Snapshot names
// sort chronologically.
func (j *BackupJob) prune(kind store.Kind) error {
	snaps, err := Snapshots(j.Dir, kind)
	if err != nil {
		return err
	}
	keep := j.Keep
	if keep <= 0 {
		keep = DefaultBackupKeep
	}
	if len(snaps) <= keep {
		return nil
	}

	var errs []error
	for _, path := range snaps[:len(snaps)-keep] {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("cron: pruning %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// Snapshots returns the snapshot paths of kind in dir, oldest first.
func Snapshots(dir string, kind store.Kind) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("cron: listing backups: %w", err)
	}

	prefix := string(kind) + "-"
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	slices.Sort(out)
	return out, nil
}

func (j *BackupJob) clock() time.Time {
	if j.now != nil {
		return j.now()
	}
	return time.Now()
}

func (j *BackupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.New(slog.DiscardHandler)
}
