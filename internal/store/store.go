// Package store persists cards and exposes the narrow surface the
// enrichment pipeline needs: fetch, partial update, and the user's tag
// vocabulary.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cardstash/cardstash/internal/model"
)

// ErrNotFound is returned when a card does not exist or is soft-deleted.
var ErrNotFound = eris.New("store: card not found")

// CardPatch is a partial update. Nil fields are left untouched; a nil
// Tags slice means "unchanged" (an empty non-nil slice clears tags).
// MergeMetadata is merged key-wise into the existing metadata map; a
// key with a nil value deletes that key.
type CardPatch struct {
	Content       *string
	Title         *string
	ImageURL      *string
	Type          *model.CardType
	Tags          []string
	MergeMetadata map[string]any
}

// IsZero reports whether the patch would change nothing.
func (p CardPatch) IsZero() bool {
	return p.Content == nil && p.Title == nil && p.ImageURL == nil &&
		p.Type == nil && p.Tags == nil && len(p.MergeMetadata) == 0
}

// Store defines the persistence interface for the card service.
type Store interface {
	// Cards
	CreateCard(ctx context.Context, card *model.Card) (*model.Card, error)
	GetCard(ctx context.Context, cardID string) (*model.Card, error)
	UpdateCard(ctx context.Context, cardID string, patch CardPatch) error
	SoftDeleteCard(ctx context.Context, cardID string) error

	// Tag vocabulary
	ListDistinctTags(ctx context.Context, userID string) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// mergeMetadata applies patch semantics to an existing metadata map in
// memory. Shared by the SQLite backend, which cannot merge server-side.
func mergeMetadata(existing, patch map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(patch))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}
