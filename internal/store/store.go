// Package store defines the document store the chat state is persisted in.
// Each document is a whole JSON value rewritten on every save; backends live
// under modules/store.
package store

import (
	"context"
	"errors"
)

// Service is the AppContext service key under which the configured store
// module publishes itself.
const Service = "store.documents"

// Kind names a persisted document.
type Kind string

// Document kinds.
const (
	KindConversations Kind = "conversations"
	KindMemory        Kind = "memory"
)

// Kinds lists every document kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindConversations, KindMemory}
}

// Sentinel errors.
var (
	// ErrNotFound is returned by Load when the document was never saved.
	ErrNotFound = errors.New("store: document not found")

	// ErrCorrupt indicates a saved document that cannot be decoded.
	// It is never handled by discarding the document.
	ErrCorrupt = errors.New("store: document is corrupt")
)

// Store loads and saves whole documents. Save replaces the previous body
// atomically: a reader sees either the old or the new document, never a mix.
// Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context, kind Kind) ([]byte, error)
	Save(ctx context.Context, kind Kind, data []byte) error
}
