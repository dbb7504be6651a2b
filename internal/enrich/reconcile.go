package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cardstash/cardstash/internal/model"
	"github.com/cardstash/cardstash/internal/store"
)

// reconcile folds the enrichment results into the card with a single
// write. The card is re-read immediately beforehand so edits made while
// the pipeline ran (new tags, a renamed title, a written summary) are
// merged rather than clobbered. Two concurrent runs on the same card
// can still race each other; last write wins.
func (e *Enricher) reconcile(ctx context.Context, cardID string, outcome *classifyOutcome, tags []string, acquired AcquireResult, timing model.EnrichmentTiming) (*model.Card, error) {
	fresh, err := e.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: re-read card")
	}

	classification := outcome.Classification
	patch := store.CardPatch{
		MergeMetadata: map[string]any{
			model.MetaProcessing:         false,
			model.MetaEnrichmentError:    nil,
			model.MetaEnrichmentFailedAt: nil,
			model.MetaEnrichedAt:         time.Now().UTC().Format(time.RFC3339),
			model.MetaEnrichmentTiming:   timing,
		},
	}

	if classification.Type != "" {
		t := classification.Type
		patch.Type = &t
	}
	if classification.Platform != "" {
		patch.MergeMetadata[model.MetaPlatform] = classification.Platform
	}

	if len(tags) > 0 {
		patch.Tags = unionTags(fresh.Tags, tags)
	}

	decision := ResolveTitle(fresh.Title, fresh.TitleEdited(), classification.Platform,
		classification.Title, fresh.HasMeta(model.MetaYear), fresh.HasMeta(model.MetaRating))
	patch.Title = decision.Title
	if decision.Year != nil {
		patch.MergeMetadata[model.MetaYear] = *decision.Year
	}
	if decision.Rating != nil {
		patch.MergeMetadata[model.MetaRating] = *decision.Rating
	}

	if classification.Summary != "" && !fresh.SummaryEdited() {
		patch.MergeMetadata[model.MetaSummary] = classification.Summary
	}

	// The scraped publication date is authoritative when present.
	if acquired.PublishedAt != nil {
		patch.MergeMetadata[model.MetaPublishedAt] = acquired.PublishedAt.UTC().Format(time.RFC3339)
	}

	if outcome.Image != nil {
		if len(outcome.Image.Colors) > 0 {
			patch.MergeMetadata[model.MetaColors] = outcome.Image.Colors
		}
		if len(outcome.Image.Objects) > 0 {
			patch.MergeMetadata[model.MetaObjects] = outcome.Image.Objects
		}
		if outcome.Image.OCRText != "" {
			patch.MergeMetadata[model.MetaOCRText] = outcome.Image.OCRText
		}
	}

	if err := e.store.UpdateCard(ctx, cardID, patch); err != nil {
		return nil, eris.Wrap(err, "reconcile: persist enrichment")
	}

	return applyPatch(fresh, patch), nil
}

// unionTags merges existing and new tags, existing first, dropping
// duplicates.
func unionTags(existing, added []string) []string {
	return dedupeTags(append(append([]string{}, existing...), added...))
}

// applyPatch returns the in-memory card state after a patch, matching
// what a re-read would return. Used to build the embedding text without
// another round trip.
func applyPatch(card *model.Card, patch store.CardPatch) *model.Card {
	merged := *card
	if patch.Content != nil {
		merged.Content = *patch.Content
	}
	if patch.Title != nil {
		merged.Title = *patch.Title
	}
	if patch.ImageURL != nil {
		merged.ImageURL = *patch.ImageURL
	}
	if patch.Type != nil {
		merged.Type = *patch.Type
	}
	if patch.Tags != nil {
		merged.Tags = patch.Tags
	}
	meta := make(map[string]any, len(card.Metadata)+len(patch.MergeMetadata))
	for k, v := range card.Metadata {
		meta[k] = v
	}
	for k, v := range patch.MergeMetadata {
		if v == nil {
			delete(meta, k)
			continue
		}
		meta[k] = v
	}
	merged.Metadata = meta
	return &merged
}
