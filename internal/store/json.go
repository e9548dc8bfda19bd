package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flemzord/aether/internal/security"
)

// LoadJSON loads kind from s and decodes it into v. It reports false with a
// nil error when the document does not exist, leaving v untouched. A body
// that is not valid JSON for v wraps ErrCorrupt.
func LoadJSON(ctx context.Context, s Store, kind Kind, v any) (bool, error) {
	data, err := s.Load(ctx, kind)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: loading %s: %w", kind, err)
	}
	if err := security.ValidateJSONDepth(data, 0); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrCorrupt, kind, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrCorrupt, kind, err)
	}
	return true, nil
}

// SaveJSON encodes v with two-space indentation and saves it as kind.
func SaveJSON(ctx context.Context, s Store, kind Kind, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", kind, err)
	}
	if err := s.Save(ctx, kind, append(data, '\n')); err != nil {
		return fmt.Errorf("store: saving %s: %w", kind, err)
	}
	return nil
}
