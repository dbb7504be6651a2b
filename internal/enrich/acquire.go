package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cardstash/cardstash/internal/model"
	"github.com/cardstash/cardstash/internal/store"
)

// AcquireResult is what content acquisition hands to classification.
type AcquireResult struct {
	Content     string
	Title       string
	ImageURL    string
	PublishedAt *time.Time
	ScrapeMs    int64
}

// acquireContent ensures the card has text to classify. Cards saved
// with content (notes, pasted text) pass through untouched. Link cards
// are scraped exactly once; a scrape failure is a soft fail and the
// pipeline continues with whatever the card already holds.
//
// Scraped results are persisted eagerly so a later pipeline failure
// does not lose them: content always, title only when the user has not
// edited it and the stored one is empty or the save-time placeholder,
// image only when the card has none.
func (e *Enricher) acquireContent(ctx context.Context, card *model.Card) AcquireResult {
	res := AcquireResult{
		Content:  card.Content,
		Title:    card.Title,
		ImageURL: card.ImageURL,
	}
	if card.Content != "" || card.URL == "" {
		return res
	}

	log := zap.L().With(zap.String("cardId", card.ID), zap.String("url", card.URL))

	start := time.Now()
	scraped, err := e.scraper.Scrape(ctx, card.URL)
	res.ScrapeMs = time.Since(start).Milliseconds()
	if err != nil {
		log.Warn("scrape failed, continuing without content", zap.Error(err))
		return res
	}

	res.Content = scraped.Content
	res.PublishedAt = scraped.PublishedAt

	patch := store.CardPatch{Content: &scraped.Content}
	if scraped.Title != "" && !card.TitleEdited() && (card.Title == "" || card.Title == PlaceholderTitle) {
		patch.Title = &scraped.Title
		res.Title = scraped.Title
	}
	if scraped.ImageURL != "" && card.ImageURL == "" {
		patch.ImageURL = &scraped.ImageURL
		res.ImageURL = scraped.ImageURL
	}

	if err := e.store.UpdateCard(ctx, card.ID, patch); err != nil {
		log.Warn("eager persist of scraped content failed", zap.Error(err))
	}
	return res
}
