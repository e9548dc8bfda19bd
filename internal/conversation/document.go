package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/flemzord/aether/internal/store"
)

// documentVersion is the current conversations document format.
const documentVersion = 1

// document is the persisted conversation set.
type document struct {
	Version       int                `json:"version"`
	Active        string             `json:"active"`
	Order         []string           `json:"order"`
	Conversations map[string]*record `json:"conversations"`
}

type record struct {
	Title   string `json:"title"`
	History []Turn `json:"history"`
}

// clone copies the set. Records are shared; callers replace a record instead
// of mutating it.
func (d *document) clone() *document {
	return &document{
		Version:       d.Version,
		Active:        d.Active,
		Order:         slices.Clone(d.Order),
		Conversations: maps.Clone(d.Conversations),
	}
}

// decodeDocument parses a conversations document. A bare JSON array is the
// single-session history format and is migrated into a one-conversation set
// titled from its first user turn. It reports whether a migration happened.
func decodeDocument(raw json.RawMessage, defaultTitle string, titleMaxLen int, newID func() string) (*document, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var history []Turn
		if err := json.Unmarshal(raw, &history); err != nil {
			return nil, false, fmt.Errorf("%w: legacy history: %w", store.ErrCorrupt, err)
		}
		if err := checkTurns(history); err != nil {
			return nil, false, err
		}
		title := defaultTitle
		for _, t := range history {
			if t.Role == RoleUser {
				if derived := deriveTitle(t.Content, titleMaxLen); derived != "" {
					title = derived
				}
				break
			}
		}
		id := newID()
		return &document{
			Version:       documentVersion,
			Active:        id,
			Order:         []string{id},
			Conversations: map[string]*record{id: {Title: title, History: history}},
		}, true, nil
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("%w: conversations: %w", store.ErrCorrupt, err)
	}
	if doc.Version != documentVersion {
		return nil, false, fmt.Errorf("%w: unsupported conversations version %d", store.ErrCorrupt, doc.Version)
	}
	for id, rec := range doc.Conversations {
		if rec == nil {
			return nil, false, fmt.Errorf("%w: conversation %q is null", store.ErrCorrupt, id)
		}
		if err := checkTurns(rec.History); err != nil {
			return nil, false, fmt.Errorf("conversation %q: %w", id, err)
		}
	}
	doc.normalizeOrder()
	return &doc, false, nil
}

func checkTurns(history []Turn) error {
	for i, t := range history {
		if !t.Role.Valid() {
			return fmt.Errorf("%w: turn %d has role %q", store.ErrCorrupt, i, t.Role)
		}
	}
	return nil
}

// normalizeOrder makes Order a permutation of the conversation keys: unknown
// and duplicate ids are dropped and unlisted ids appended in sorted order.
func (d *document) normalizeOrder() {
	if d.Conversations == nil {
		d.Conversations = make(map[string]*record)
	}
	seen := make(map[string]bool, len(d.Order))
	order := d.Order[:0:0]
	for _, id := range d.Order {
		if _, ok := d.Conversations[id]; ok && !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(d.Conversations)) {
		if !seen[id] {
			order = append(order, id)
		}
	}
	d.Order = order
}
