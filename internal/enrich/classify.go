package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cardstash/cardstash/internal/model"
	"github.com/cardstash/cardstash/internal/resilience"
	"github.com/cardstash/cardstash/pkg/quality"
)

// classifyOutcome bundles the classification verdict with the optional
// image analysis from the parallel branch.
type classifyOutcome struct {
	Classification *model.ClassificationResult
	Image          *model.ImageAnalysis
	ClassifyMs     int64
}

// classifyContent runs classification and image analysis in parallel.
// Classification is retried under the pipeline retry policy and is
// fatal when it still fails; image analysis gets a single attempt and
// its failure only costs the image fields.
func (e *Enricher) classifyContent(ctx context.Context, card *model.Card, acquired AcquireResult, platform string) (*classifyOutcome, error) {
	out := &classifyOutcome{}
	log := zap.L().With(zap.String("cardId", card.ID))

	imageCount := 0
	if acquired.ImageURL != "" {
		imageCount = 1
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		resp, err := resilience.Do(gctx, e.retryConfig("quality", "classify"),
			func(ctx context.Context) (*quality.ClassifyResponse, error) {
				return e.quality.Classify(ctx, quality.ClassifyRequest{
					URL:        card.URL,
					Content:    acquired.Content,
					ImageURL:   acquired.ImageURL,
					ImageCount: imageCount,
				})
			})
		out.ClassifyMs = time.Since(start).Milliseconds()
		if err != nil {
			return eris.Wrap(err, "classify content")
		}

		result := &model.ClassificationResult{
			Type:     model.ParseCardType(resp.Type),
			Title:    resp.Title,
			Summary:  resp.Summary,
			Platform: resp.Platform,
			Tags:     resp.Tags,
		}
		if result.Platform == "" {
			result.Platform = platform
		}
		out.Classification = result
		return nil
	})

	if acquired.ImageURL != "" {
		g.Go(func() error {
			analysis, err := e.quality.AnalyzeImage(gctx, acquired.ImageURL)
			if err != nil {
				log.Warn("image analysis failed, continuing without it", zap.Error(err))
				return nil
			}
			out.Image = &model.ImageAnalysis{
				Colors:  analysis.Colors,
				Objects: analysis.Objects,
				OCRText: analysis.OCRText,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// retryConfig builds the pipeline retry policy from config: total
// attempts is max_retries + the initial try, fixed backoff growth, no
// jitter.
func (e *Enricher) retryConfig(service, operation string) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    e.cfg.MaxRetries + 1,
		InitialBackoff: time.Duration(e.cfg.RetryBackoffMs) * time.Millisecond,
		Multiplier:     2.0,
		OnRetry:        resilience.RetryLogger(service, operation),
	}
}
