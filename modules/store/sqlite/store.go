package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flemzord/aether/internal/store"
)

// Store is a store.Store keeping one row per document.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Load implements store.Store.
func (s *Store) Load(ctx context.Context, kind store.Kind) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, "SELECT body FROM documents WHERE kind = ?", string(kind)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store.sqlite: load %s: %w", kind, err)
	}
	return body, nil
}

// Save implements store.Store as a single UPSERT, so the previous body stays
// in place if the statement fails.
func (s *Store) Save(ctx context.Context, kind store.Kind, data []byte) error {
	const q = `INSERT INTO documents (kind, body) VALUES (?, ?)
		ON CONFLICT(kind) DO UPDATE SET
			body       = excluded.body,
			revision   = documents.revision + 1,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')`

	if _, err := s.db.ExecContext(ctx, q, string(kind), data); err != nil {
		return fmt.Errorf("store.sqlite: save %s: %w", kind, err)
	}
	return nil
}

// Revision returns how many times kind has been saved, or 0 if never.
func (s *Store) Revision(ctx context.Context, kind store.Kind) (int, error) {
	var rev int
	err := s.db.QueryRowContext(ctx, "SELECT revision FROM documents WHERE kind = ?", string(kind)).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store.sqlite: revision %s: %w", kind, err)
	}
	return rev, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
