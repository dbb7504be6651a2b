package model

import "time"

// ClassificationResult is the normalized output of the content quality
// service for one card. It is ephemeral: always merged into card
// metadata, never persisted as-is.
type ClassificationResult struct {
	Type     CardType `json:"type"`
	Title    string   `json:"title,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	Platform string   `json:"platform,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// ImageAnalysis holds the auxiliary image enrichment for a card. A nil
// ImageAnalysis means analysis was skipped or failed; both are fine.
type ImageAnalysis struct {
	Colors  []string `json:"colors,omitempty"`
	Objects []string `json:"objects,omitempty"`
	OCRText string   `json:"ocr_text,omitempty"`
}

// EnrichmentTiming tracks one enrichment run for UI progress display.
// Created when the run starts, mutated only by the orchestrator, and
// persisted inside the card's metadata map.
type EnrichmentTiming struct {
	StartedAt     time.Time  `json:"startedAt"`
	Platform      string     `json:"platform"`
	ContentLength int        `json:"contentLength"`
	ImageCount    int        `json:"imageCount"`
	EstimatedMs   int64      `json:"estimatedMs"`
	ScrapeMs      int64      `json:"scrapeMs,omitempty"`
	ClassifyMs    int64      `json:"classifyMs,omitempty"`
	TotalMs       int64      `json:"totalMs,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// NewEnrichmentTiming creates the timing record for a run, with a rough
// duration estimate the UI can surface as a progress hint.
func NewEnrichmentTiming(platform string, contentLength, imageCount int) EnrichmentTiming {
	return EnrichmentTiming{
		StartedAt:     time.Now().UTC(),
		Platform:      platform,
		ContentLength: contentLength,
		ImageCount:    imageCount,
		EstimatedMs:   estimateDurationMs(contentLength, imageCount),
	}
}

// estimateDurationMs predicts total enrichment duration. Empty content
// implies a scrape; long content and extra images slow classification.
func estimateDurationMs(contentLength, imageCount int) int64 {
	est := int64(5000)
	if contentLength == 0 {
		est += 4000 // scrape round-trip
	}
	est += int64(contentLength/1000) * 200
	est += int64(imageCount) * 1500
	if est > 45000 {
		est = 45000
	}
	return est
}

// Complete fills in the per-stage durations once a run finishes.
func (t *EnrichmentTiming) Complete(scrapeMs, classifyMs int64) {
	now := time.Now().UTC()
	t.ScrapeMs = scrapeMs
	t.ClassifyMs = classifyMs
	t.TotalMs = now.Sub(t.StartedAt).Milliseconds()
	t.CompletedAt = &now
}
