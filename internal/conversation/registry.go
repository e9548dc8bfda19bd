package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/flemzord/aether/internal/store"
	"github.com/google/uuid"
)

// Options configure a Registry.
type Options struct {
	// DefaultTitle names new conversations. Defaults to "New chat".
	DefaultTitle string

	// TitleMaxLen bounds derived titles, in runes. Defaults to 30.
	TitleMaxLen int

	Logger *slog.Logger

	// NewID generates conversation identifiers. Defaults to uuid.NewString.
	NewID func() string
}

func (o *Options) defaults() {
	if o.DefaultTitle == "" {
		o.DefaultTitle = DefaultTitle
	}
	if o.TitleMaxLen <= 0 {
		o.TitleMaxLen = DefaultTitleMaxLen
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
}

// Registry is the conversation set and its active pointer, backed by a
// store.Store. It is safe for concurrent use. Mutations build a new document,
// save it, and only then publish it, so a failed save changes nothing.
type Registry struct {
	store store.Store
	opts  Options

	mu  sync.RWMutex
	doc *document
}

// Load reads the conversation set from s. A missing document yields one
// empty default conversation; a corrupt one fails with store.ErrCorrupt.
func Load(ctx context.Context, s store.Store, opts Options) (*Registry, error) {
	opts.defaults()
	r := &Registry{store: s, opts: opts}

	var raw json.RawMessage
	found, err := store.LoadJSON(ctx, s, store.KindConversations, &raw)
	if err != nil {
		return nil, err
	}

	if !found {
		r.doc = r.emptyDocument()
		return r, nil
	}

	doc, migrated, err := decodeDocument(raw, opts.DefaultTitle, opts.TitleMaxLen, opts.NewID)
	if err != nil {
		return nil, err
	}
	if len(doc.Conversations) == 0 {
		doc = r.emptyDocument()
	} else if _, ok := doc.Conversations[doc.Active]; !ok {
		opts.Logger.Warn("active conversation missing, using most recent", "active", doc.Active)
		doc.Active = doc.Order[len(doc.Order)-1]
	}

	if migrated {
		if err := store.SaveJSON(ctx, s, store.KindConversations, doc); err != nil {
			return nil, fmt.Errorf("conversation: saving migrated history: %w", err)
		}
		opts.Logger.Info("migrated single-session history", "turns", len(doc.Conversations[doc.Active].History))
	}

	r.doc = doc
	return r, nil
}

func (r *Registry) emptyDocument() *document {
	id := r.opts.NewID()
	return &document{
		Version:       documentVersion,
		Active:        id,
		Order:         []string{id},
		Conversations: map[string]*record{id: {Title: r.opts.DefaultTitle}},
	}
}

// commit saves next and publishes it. Caller holds r.mu for writing.
func (r *Registry) commit(ctx context.Context, next *document) error {
	if err := store.SaveJSON(ctx, r.store, store.KindConversations, next); err != nil {
		return fmt.Errorf("conversation: %w", err)
	}
	r.doc = next
	return nil
}

// ActiveID returns the active conversation identifier.
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.Active
}

// Active returns a copy of the active conversation.
func (r *Registry) Active() Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conversation(r.doc.Active)
}

// Get returns a copy of the conversation with the given id.
func (r *Registry) Get(id string) (Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.doc.Conversations[id]; !ok {
		return Conversation{}, false
	}
	return r.conversation(id), true
}

func (r *Registry) conversation(id string) Conversation {
	rec := r.doc.Conversations[id]
	return Conversation{ID: id, Title: rec.Title, History: slices.Clone(rec.History)}
}

// Len returns the number of conversations, empty ones included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.doc.Conversations)
}

// List returns the non-empty conversations in creation order.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Summary, 0, len(r.doc.Order))
	for _, id := range r.doc.Order {
		rec := r.doc.Conversations[id]
		if len(rec.History) == 0 {
			continue
		}
		out = append(out, Summary{
			ID:     id,
			Title:  rec.Title,
			Turns:  len(rec.History),
			Active: id == r.doc.Active,
		})
	}
	return out
}

// All returns copies of every conversation in creation order.
func (r *Registry) All() []Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conversation, 0, len(r.doc.Order))
	for _, id := range r.doc.Order {
		out = append(out, r.conversation(id))
	}
	return out
}

// CreateNew creates an empty conversation with the default title and makes
// it active. When the active conversation has no turns it does nothing and
// returns the active id with created false.
func (r *Registry) CreateNew(ctx context.Context) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.doc.Conversations[r.doc.Active].History) == 0 {
		return r.doc.Active, false, nil
	}

	id := r.opts.NewID()
	if _, exists := r.doc.Conversations[id]; exists {
		return "", false, fmt.Errorf("conversation: generated id %q already exists", id)
	}

	next := r.doc.clone()
	next.Conversations[id] = &record{Title: r.opts.DefaultTitle}
	next.Order = append(next.Order, id)
	next.Active = id

	if err := r.commit(ctx, next); err != nil {
		return "", false, err
	}
	r.opts.Logger.Debug("conversation created", "id", id)
	return id, true, nil
}

// SwitchTo makes id the active conversation. Unknown ids are ignored and
// reported with switched false and a nil error.
func (r *Registry) SwitchTo(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.doc.Conversations[id]; !ok {
		return false, nil
	}
	if id == r.doc.Active {
		return true, nil
	}

	next := r.doc.clone()
	next.Active = id
	if err := r.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// AppendTurn appends a single turn to the active conversation.
func (r *Registry) AppendTurn(ctx context.Context, role Role, content string) error {
	return r.Append(ctx, Turn{Role: role, Content: content})
}

// Append appends turns to the active conversation in one persisted
// mutation. The first user turn of a conversation still carrying the
// default title renames it to the message truncated to TitleMaxLen runes.
func (r *Registry) Append(ctx context.Context, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	for _, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidRole, t.Role)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.doc.Conversations[r.doc.Active]
	rec := &record{
		Title:   cur.Title,
		History: append(slices.Clip(cur.History), turns...),
	}

	if rec.Title == r.opts.DefaultTitle && !hasUserTurn(cur.History) {
		for _, t := range turns {
			if t.Role != RoleUser {
				continue
			}
			if title := deriveTitle(t.Content, r.opts.TitleMaxLen); title != "" {
				rec.Title = title
			}
			break
		}
	}

	next := r.doc.clone()
	next.Conversations[next.Active] = rec
	return r.commit(ctx, next)
}
