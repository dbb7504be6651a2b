package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cardstash/cardstash/internal/model"
	"github.com/cardstash/cardstash/pkg/vector"
)

// maxIndexedImageURLLen caps the image URL carried in index metadata.
// Data-URI style monsters blow past index field limits, so anything
// longer is simply omitted.
const maxIndexedImageURLLen = 512

// buildEmbeddingText assembles the text representation indexed for
// semantic search: title, tags and summary, one section per line.
func buildEmbeddingText(card *model.Card) string {
	var parts []string
	if card.Title != "" {
		parts = append(parts, card.Title)
	}
	if len(card.Tags) > 0 {
		parts = append(parts, "tags: "+strings.Join(card.Tags, ", "))
	}
	if summary := card.MetaString(model.MetaSummary); summary != "" {
		parts = append(parts, summary)
	}
	return strings.Join(parts, "\n")
}

// publishEmbedding upserts the card into the vector index. It is
// fire-and-forget: the caller runs it on its own goroutine and a
// failure is only logged, never surfaced to the user.
func (e *Enricher) publishEmbedding(ctx context.Context, card *model.Card) {
	text := buildEmbeddingText(card)
	if text == "" {
		return
	}

	meta := map[string]string{
		"userId": card.UserID,
		"type":   string(card.Type),
	}
	if card.ImageURL != "" && len(card.ImageURL) <= maxIndexedImageURLLen {
		meta["imageUrl"] = card.ImageURL
	}

	if err := e.vector.Upsert(ctx, vector.UpsertRequest{
		ID:       card.ID,
		Text:     text,
		Metadata: meta,
	}); err != nil {
		zap.L().Warn("embedding publish failed",
			zap.String("cardId", card.ID),
			zap.Error(err),
		)
	}
}
