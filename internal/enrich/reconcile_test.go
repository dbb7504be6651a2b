package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cardstash/cardstash/internal/model"
	"github.com/cardstash/cardstash/internal/store"
)

func successOutcome() *classifyOutcome {
	return &classifyOutcome{
		Classification: &model.ClassificationResult{
			Type:     model.CardTypeArticle,
			Title:    "Classified Title",
			Summary:  "A generated summary.",
			Platform: "article",
			Tags:     []string{"reading"},
		},
		ClassifyMs: 120,
	}
}

func TestReconcile_MergesAgainstFreshState(t *testing.T) {
	st := &mockStore{}
	e := newTestEnricher(st, &mockScraper{}, &mockQuality{}, &mockVector{})

	// While the pipeline ran, the user added a tag and a note.
	fresh := testCard(func(c *model.Card) {
		c.Tags = []string{"user-added"}
		c.Metadata = map[string]any{
			model.MetaProcessing: true,
			"notes":              "do not lose me",
		}
	})
	st.On("GetCard", mock.Anything, "card-1").Return(fresh, nil)

	var patch store.CardPatch
	st.On("UpdateCard", mock.Anything, "card-1", mock.AnythingOfType("store.CardPatch")).
		Run(func(args mock.Arguments) { patch = args.Get(2).(store.CardPatch) }).
		Return(nil)

	timing := model.NewEnrichmentTiming("article", 100, 0)
	timing.Complete(50, 120)

	merged, err := e.reconcile(context.Background(), "card-1", successOutcome(),
		[]string{"reading", "user-added"}, AcquireResult{}, timing)
	require.NoError(t, err)

	// Tag union keeps the concurrent edit and dedupes.
	assert.Equal(t, []string{"user-added", "reading"}, patch.Tags)
	require.NotNil(t, patch.Type)
	assert.Equal(t, model.CardTypeArticle, *patch.Type)
	require.NotNil(t, patch.Title)
	assert.Equal(t, "Classified Title", *patch.Title)

	assert.Equal(t, false, patch.MergeMetadata[model.MetaProcessing])
	assert.Contains(t, patch.MergeMetadata, model.MetaEnrichmentError)
	assert.Nil(t, patch.MergeMetadata[model.MetaEnrichmentError])
	assert.Nil(t, patch.MergeMetadata[model.MetaEnrichmentFailedAt])
	assert.NotEmpty(t, patch.MergeMetadata[model.MetaEnrichedAt])
	assert.Equal(t, "A generated summary.", patch.MergeMetadata[model.MetaSummary])
	assert.Equal(t, timing, patch.MergeMetadata[model.MetaEnrichmentTiming])

	// Merged snapshot reflects the write without a re-read.
	assert.Equal(t, "Classified Title", merged.Title)
	assert.Equal(t, "do not lose me", merged.MetaString("notes"))
	assert.Equal(t, false, merged.Meta(model.MetaProcessing))
}

func TestReconcile_EditedSummaryNotOverwritten(t *testing.T) {
	st := &mockStore{}
	e := newTestEnricher(st, &mockScraper{}, &mockQuality{}, &mockVector{})

	fresh := testCard(func(c *model.Card) {
		c.Metadata = map[string]any{
			model.MetaSummaryEditedAt: "2024-01-02T00:00:00Z",
			model.MetaSummary:         "my own words",
		}
	})
	st.On("GetCard", mock.Anything, "card-1").Return(fresh, nil)

	var patch store.CardPatch
	st.On("UpdateCard", mock.Anything, "card-1", mock.AnythingOfType("store.CardPatch")).
		Run(func(args mock.Arguments) { patch = args.Get(2).(store.CardPatch) }).
		Return(nil)

	timing := model.NewEnrichmentTiming("article", 0, 0)
	_, err := e.reconcile(context.Background(), "card-1", successOutcome(), nil, AcquireResult{}, timing)
	require.NoError(t, err)

	assert.NotContains(t, patch.MergeMetadata, model.MetaSummary)
}

func TestReconcile_MoviePlatformYearAndRating(t *testing.T) {
	st := &mockStore{}
	e := newTestEnricher(st, &mockScraper{}, &mockQuality{}, &mockVector{})

	st.On("GetCard", mock.Anything, "card-1").Return(testCard(), nil)

	var patch store.CardPatch
	st.On("UpdateCard", mock.Anything, "card-1", mock.AnythingOfType("store.CardPatch")).
		Run(func(args mock.Arguments) { patch = args.Get(2).(store.CardPatch) }).
		Return(nil)

	outcome := &classifyOutcome{
		Classification: &model.ClassificationResult{
			Type:     model.CardTypeVideo,
			Title:    "Parasite (2019) ★★★★",
			Platform: "letterboxd",
		},
	}
	timing := model.NewEnrichmentTiming("letterboxd", 0, 0)
	_, err := e.reconcile(context.Background(), "card-1", outcome, nil, AcquireResult{}, timing)
	require.NoError(t, err)

	require.NotNil(t, patch.Title)
	assert.Equal(t, "Parasite", *patch.Title)
	assert.Equal(t, 2019, patch.MergeMetadata[model.MetaYear])
	assert.Equal(t, 4.0, patch.MergeMetadata[model.MetaRating])
}

func TestReconcile_ScrapedPublishedAtWins(t *testing.T) {
	st := &mockStore{}
	e := newTestEnricher(st, &mockScraper{}, &mockQuality{}, &mockVector{})

	fresh := testCard(func(c *model.Card) {
		c.Metadata = map[string]any{model.MetaPublishedAt: "2020-01-01T00:00:00Z"}
	})
	st.On("GetCard", mock.Anything, "card-1").Return(fresh, nil)

	var patch store.CardPatch
	st.On("UpdateCard", mock.Anything, "card-1", mock.AnythingOfType("store.CardPatch")).
		Run(func(args mock.Arguments) { patch = args.Get(2).(store.CardPatch) }).
		Return(nil)

	published := mustTime(t, "2024-03-01T12:00:00Z")
	timing := model.NewEnrichmentTiming("article", 0, 0)
	_, err := e.reconcile(context.Background(), "card-1", successOutcome(), nil,
		AcquireResult{PublishedAt: &published}, timing)
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01T12:00:00Z", patch.MergeMetadata[model.MetaPublishedAt])
}

func TestReconcile_ImageAnalysisPersisted(t *testing.T) {
	st := &mockStore{}
	e := newTestEnricher(st, &mockScraper{}, &mockQuality{}, &mockVector{})

	st.On("GetCard", mock.Anything, "card-1").Return(testCard(), nil)

	var patch store.CardPatch
	st.On("UpdateCard", mock.Anything, "card-1", mock.AnythingOfType("store.CardPatch")).
		Run(func(args mock.Arguments) { patch = args.Get(2).(store.CardPatch) }).
		Return(nil)

	outcome := successOutcome()
	outcome.Image = &model.ImageAnalysis{
		Colors:  []string{"#112233"},
		Objects: []string{"dog"},
		OCRText: "CATCH",
	}
	timing := model.NewEnrichmentTiming("article", 0, 1)
	_, err := e.reconcile(context.Background(), "card-1", outcome, nil, AcquireResult{}, timing)
	require.NoError(t, err)

	assert.Equal(t, []string{"#112233"}, patch.MergeMetadata[model.MetaColors])
	assert.Equal(t, []string{"dog"}, patch.MergeMetadata[model.MetaObjects])
	assert.Equal(t, "CATCH", patch.MergeMetadata[model.MetaOCRText])
}

func TestReconcile_ReReadFailureIsFatal(t *testing.T) {
	st := &mockStore{}
	e := newTestEnricher(st, &mockScraper{}, &mockQuality{}, &mockVector{})

	st.On("GetCard", mock.Anything, "card-1").Return(nil, eris.New("db down"))

	timing := model.NewEnrichmentTiming("article", 0, 0)
	_, err := e.reconcile(context.Background(), "card-1", successOutcome(), nil, AcquireResult{}, timing)
	require.Error(t, err)
	st.AssertNotCalled(t, "UpdateCard")
}

func TestUnionTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, unionTags([]string{"a", "b"}, []string{"b", "c"}))
	assert.Equal(t, []string{"a"}, unionTags(nil, []string{"a"}))
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}
