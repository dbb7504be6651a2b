package enrich

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/cardstash/cardstash/internal/config"
	"github.com/cardstash/cardstash/internal/model"
	"github.com/cardstash/cardstash/internal/store"
	"github.com/cardstash/cardstash/pkg/quality"
	"github.com/cardstash/cardstash/pkg/scraper"
	"github.com/cardstash/cardstash/pkg/vector"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateCard(ctx context.Context, card *model.Card) (*model.Card, error) {
	args := m.Called(ctx, card)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

func (m *mockStore) GetCard(ctx context.Context, cardID string) (*model.Card, error) {
	args := m.Called(ctx, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

func (m *mockStore) UpdateCard(ctx context.Context, cardID string, patch store.CardPatch) error {
	args := m.Called(ctx, cardID, patch)
	return args.Error(0)
}

func (m *mockStore) SoftDeleteCard(ctx context.Context, cardID string) error {
	args := m.Called(ctx, cardID)
	return args.Error(0)
}

func (m *mockStore) ListDistinctTags(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Scraper Mock ---

type mockScraper struct {
	mock.Mock
}

func (m *mockScraper) Scrape(ctx context.Context, targetURL string) (*scraper.Result, error) {
	args := m.Called(ctx, targetURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scraper.Result), args.Error(1)
}

// --- Quality Mock ---

type mockQuality struct {
	mock.Mock
}

func (m *mockQuality) Classify(ctx context.Context, req quality.ClassifyRequest) (*quality.ClassifyResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quality.ClassifyResponse), args.Error(1)
}

func (m *mockQuality) AnalyzeImage(ctx context.Context, imageURL string) (*quality.ImageAnalysisResponse, error) {
	args := m.Called(ctx, imageURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quality.ImageAnalysisResponse), args.Error(1)
}

func (m *mockQuality) NormalizeTags(ctx context.Context, suggested, vocabulary []string) ([]string, error) {
	args := m.Called(ctx, suggested, vocabulary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Vector Mock ---

type mockVector struct {
	mock.Mock
}

func (m *mockVector) Upsert(ctx context.Context, req vector.UpsertRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockVector) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Interface compliance.
var (
	_ store.Store    = (*mockStore)(nil)
	_ scraper.Client = (*mockScraper)(nil)
	_ quality.Client = (*mockQuality)(nil)
	_ vector.Client  = (*mockVector)(nil)
)

// testEnrichConfig keeps retry backoffs negligible in tests.
func testEnrichConfig() config.EnrichConfig {
	return config.EnrichConfig{
		TimeoutMs:      5000,
		MaxRetries:     2,
		RetryBackoffMs: 1,
	}
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{CapabilitySecret: "test-secret", CapabilityTTLMins: 15}
}

func newTestEnricher(st *mockStore, sc *mockScraper, qc *mockQuality, vc *mockVector) *Enricher {
	return New(testEnrichConfig(), testAuthConfig(), st, sc, qc, vc)
}

func testCard(mutate ...func(*model.Card)) *model.Card {
	card := &model.Card{
		ID:        "card-1",
		UserID:    "user-1",
		URL:       "https://example.com/post",
		Title:     "Link",
		Type:      model.CardTypeLink,
		Tags:      []string{},
		Metadata:  map[string]any{},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, fn := range mutate {
		fn(card)
	}
	return card
}
