// Package enrich runs the card enrichment pipeline: acquire content,
// classify and tag it through the content quality service, reconcile
// the results against concurrent edits, and publish an embedding.
package enrich

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cardstash/cardstash/internal/apperr"
	"github.com/cardstash/cardstash/internal/auth"
	"github.com/cardstash/cardstash/internal/config"
	"github.com/cardstash/cardstash/internal/model"
	"github.com/cardstash/cardstash/internal/resilience"
	"github.com/cardstash/cardstash/internal/store"
	"github.com/cardstash/cardstash/pkg/quality"
	"github.com/cardstash/cardstash/pkg/scraper"
	"github.com/cardstash/cardstash/pkg/vector"
)

// Enricher orchestrates one enrichment run per request.
type Enricher struct {
	cfg     config.EnrichConfig
	authCfg config.AuthConfig
	store   store.Store
	scraper scraper.Client
	quality quality.Client
	vector  vector.Client
}

// New creates an Enricher.
func New(cfg config.EnrichConfig, authCfg config.AuthConfig, st store.Store, sc scraper.Client, qc quality.Client, vc vector.Client) *Enricher {
	return &Enricher{
		cfg:     cfg,
		authCfg: authCfg,
		store:   st,
		scraper: sc,
		quality: qc,
		vector:  vc,
	}
}

// Request identifies the card to enrich and who is asking.
type Request struct {
	CardID string
	// CallerID is the authenticated user, empty for anonymous calls.
	CallerID string
	// Capability is an optional card-scoped token that authorizes
	// trusted internal callers regardless of ownership.
	Capability string
}

type runResult struct {
	card           *model.Card
	classification *model.ClassificationResult
}

// Enrich runs the full pipeline for one card and returns the
// classification on success. The slow phase runs under the configured
// wall-clock budget; on timeout in-flight work is abandoned, not
// awaited. Failures are persisted onto the card so clients can show
// them, then returned.
func (e *Enricher) Enrich(ctx context.Context, req Request) (*model.ClassificationResult, error) {
	if req.CardID == "" {
		return nil, apperr.Validation("cardId required")
	}
	log := zap.L().With(zap.String("cardId", req.CardID))

	card, err := e.store.GetCard(ctx, req.CardID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Card not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, err)
	}

	if err := e.authorize(card, req); err != nil {
		return nil, err
	}

	imageCount := 0
	if card.ImageURL != "" {
		imageCount = 1
	}
	timing := model.NewEnrichmentTiming(DetectPlatform(card.URL), len(card.Content), imageCount)

	// Flip the card into its processing state before any slow work so
	// clients can render progress, and clear stale failure fields.
	err = e.store.UpdateCard(ctx, card.ID, store.CardPatch{
		MergeMetadata: map[string]any{
			model.MetaProcessing:         true,
			model.MetaEnrichmentError:    nil,
			model.MetaEnrichmentFailedAt: nil,
			model.MetaEnrichmentTiming:   timing,
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err)
	}

	budget := time.Duration(e.cfg.TimeoutMs) * time.Millisecond
	result, err := resilience.Guard(ctx, budget, func(ctx context.Context) (*runResult, error) {
		return e.run(ctx, card, timing)
	})
	if err != nil {
		kind := apperr.KindDownstream
		var de *resilience.DeadlineError
		if errors.As(err, &de) {
			kind = apperr.KindTimeout
		}
		log.Error("enrichment failed", zap.Error(err))
		e.persistFailure(context.WithoutCancel(ctx), card.ID, err)
		return nil, apperr.Wrap(kind, err)
	}

	log.Info("enrichment succeeded",
		zap.String("type", string(result.classification.Type)),
		zap.Int("tags", len(result.card.Tags)),
	)

	// Indexing is best-effort and must not delay the response.
	go e.publishEmbedding(context.WithoutCancel(ctx), result.card)

	return result.classification, nil
}

// Remove soft-deletes a card and removes its document from the vector
// index. Index cleanup is best-effort; a card that is gone from the
// store but lingers in the index only costs a stale search hit.
func (e *Enricher) Remove(ctx context.Context, req Request) error {
	if req.CardID == "" {
		return apperr.Validation("cardId required")
	}

	card, err := e.store.GetCard(ctx, req.CardID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Card not found")
		}
		return apperr.Wrap(apperr.KindInternal, err)
	}
	if err := e.authorize(card, req); err != nil {
		return err
	}

	if err := e.store.SoftDeleteCard(ctx, card.ID); err != nil {
		return apperr.Wrap(apperr.KindInternal, err)
	}

	if err := e.vector.Delete(context.WithoutCancel(ctx), card.ID); err != nil {
		zap.L().Warn("vector index cleanup failed",
			zap.String("cardId", card.ID),
			zap.Error(err),
		)
	}
	return nil
}

// run is the guarded slow phase: scrape, classify, normalize,
// reconcile.
func (e *Enricher) run(ctx context.Context, card *model.Card, timing model.EnrichmentTiming) (*runResult, error) {
	acquired := e.acquireContent(ctx, card)

	outcome, err := e.classifyContent(ctx, card, acquired, timing.Platform)
	if err != nil {
		return nil, err
	}

	tags := e.normalizeTags(ctx, card.UserID, outcome.Classification.Tags)

	timing.Complete(acquired.ScrapeMs, outcome.ClassifyMs)

	merged, err := e.reconcile(ctx, card.ID, outcome, tags, acquired, timing)
	if err != nil {
		return nil, err
	}
	return &runResult{card: merged, classification: outcome.Classification}, nil
}

// authorize checks that the caller owns the card or presents a valid
// card-scoped capability token.
func (e *Enricher) authorize(card *model.Card, req Request) error {
	if req.CallerID != "" && req.CallerID == card.UserID {
		return nil
	}
	if req.Capability != "" {
		if err := auth.Verify(e.authCfg.CapabilitySecret, req.Capability, card.ID, time.Now()); err == nil {
			return nil
		}
	}
	return apperr.Unauthorized("Unauthorized")
}

// persistFailure records the failure on the card so clients stop
// showing a processing state. The write itself is best-effort; if it
// fails there is nothing left to do but log.
func (e *Enricher) persistFailure(ctx context.Context, cardID string, cause error) {
	err := e.store.UpdateCard(ctx, cardID, store.CardPatch{
		MergeMetadata: map[string]any{
			model.MetaProcessing:         false,
			model.MetaEnrichmentError:    cause.Error(),
			model.MetaEnrichmentFailedAt: time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		zap.L().Error("failed to persist enrichment failure",
			zap.String("cardId", cardID),
			zap.Error(err),
		)
	}
}
