// Package memory implements the append-only memory log: statements the user
// asked to be remembered, stored under sequential keys and embedded in full
// in every prompt.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/flemzord/aether/internal/store"
)

// DefaultTrigger is the case-insensitive prefix that marks a message to record.
const DefaultTrigger = "remember"

// ErrEmptyEntry is returned when recording blank text.
var ErrEmptyEntry = errors.New("memory: empty entry")

// Entry is one recorded statement.
type Entry struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Log is the memory log backed by a store.Store. It is safe for concurrent use.
type Log struct {
	store   store.Store
	trigger string
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[string]string
	last    uint64
}

// Option configures a Log.
type Option func(*Log)

// WithTrigger sets the prefix IsTrigger matches. Blank values are ignored.
func WithTrigger(prefix string) Option {
	return func(l *Log) {
		if p := strings.TrimSpace(prefix); p != "" {
			l.trigger = strings.ToLower(p)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// Load reads the memory document from s. A missing document yields an empty
// log. Keys that are not positive decimal integers fail with store.ErrCorrupt.
func Load(ctx context.Context, s store.Store, opts ...Option) (*Log, error) {
	l := &Log{
		store:   s,
		trigger: DefaultTrigger,
		logger:  slog.New(slog.DiscardHandler),
		entries: make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}

	var doc map[string]string
	if _, err := store.LoadJSON(ctx, s, store.KindMemory, &doc); err != nil {
		return nil, err
	}
	for key, text := range doc {
		n, err := parseKey(key)
		if err != nil {
			return nil, fmt.Errorf("%w: memory key %q: %w", store.ErrCorrupt, key, err)
		}
		l.entries[key] = text
		l.last = max(l.last, n)
	}
	return l, nil
}

func parseKey(key string) (uint64, error) {
	n, err := strconv.ParseUint(key, 10, 64)
	if err != nil {
		return 0, err
	}
	if n == 0 || strconv.FormatUint(n, 10) != key {
		return 0, errors.New("not a canonical positive integer")
	}
	return n, nil
}

// IsTrigger reports whether msg starts, after leading whitespace, with the
// trigger prefix, ignoring case.
func (l *Log) IsTrigger(msg string) bool {
	msg = strings.TrimLeftFunc(msg, unicode.IsSpace)
	return strings.HasPrefix(strings.ToLower(msg), l.trigger)
}

// Record appends text under the next sequential key and persists the log.
// The in-memory log only changes once the save succeeded.
func (l *Log) Record(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyEntry
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.last + 1
	key := strconv.FormatUint(seq, 10)

	next := maps.Clone(l.entries)
	next[key] = text
	if err := store.SaveJSON(ctx, l.store, store.KindMemory, next); err != nil {
		return "", fmt.Errorf("memory: %w", err)
	}

	l.entries = next
	l.last = seq
	l.logger.Debug("memory recorded", "key", key)
	return key, nil
}

// Entries returns the entries in key order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := slices.SortedFunc(maps.Keys(l.entries), func(a, b string) int {
		na, _ := strconv.ParseUint(a, 10, 64)
		nb, _ := strconv.ParseUint(b, 10, 64)
		return cmp.Compare(na, nb)
	})
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry{Key: k, Text: l.entries[k]})
	}
	return out
}

// Snapshot returns a copy of the key to text mapping.
func (l *Log) Snapshot() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.entries)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
