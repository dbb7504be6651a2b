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
	"github.com/cardstash/cardstash/pkg/scraper"
)

func TestAcquireContent_ExistingContentSkipsScrape(t *testing.T) {
	st, sc := &mockStore{}, &mockScraper{}
	e := newTestEnricher(st, sc, &mockQuality{}, &mockVector{})

	card := testCard(func(c *model.Card) { c.Content = "already here" })
	res := e.acquireContent(context.Background(), card)

	assert.Equal(t, "already here", res.Content)
	sc.AssertNotCalled(t, "Scrape")
	st.AssertNotCalled(t, "UpdateCard")
}

func TestAcquireContent_NoURLNothingToDo(t *testing.T) {
	st, sc := &mockStore{}, &mockScraper{}
	e := newTestEnricher(st, sc, &mockQuality{}, &mockVector{})

	card := testCard(func(c *model.Card) { c.URL = "" })
	res := e.acquireContent(context.Background(), card)

	assert.Empty(t, res.Content)
	sc.AssertNotCalled(t, "Scrape")
}

func TestAcquireContent_ScrapesAndPersistsEagerly(t *testing.T) {
	st, sc := &mockStore{}, &mockScraper{}
	e := newTestEnricher(st, sc, &mockQuality{}, &mockVector{})

	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sc.On("Scrape", mock.Anything, "https://example.com/post").Return(&scraper.Result{
		Content:     "scraped body",
		Title:       "Scraped Title",
		ImageURL:    "https://example.com/hero.jpg",
		PublishedAt: &published,
	}, nil)

	var patch store.CardPatch
	st.On("UpdateCard", mock.Anything, "card-1", mock.AnythingOfType("store.CardPatch")).
		Run(func(args mock.Arguments) { patch = args.Get(2).(store.CardPatch) }).
		Return(nil)

	// Card has the save-time placeholder title and no image.
	res := e.acquireContent(context.Background(), testCard())

	assert.Equal(t, "scraped body", res.Content)
	assert.Equal(t, "Scraped Title", res.Title)
	assert.Equal(t, "https://example.com/hero.jpg", res.ImageURL)
	require.NotNil(t, res.PublishedAt)

	require.NotNil(t, patch.Content)
	assert.Equal(t, "scraped body", *patch.Content)
	require.NotNil(t, patch.Title)
	assert.Equal(t, "Scraped Title", *patch.Title)
	require.NotNil(t, patch.ImageURL)
	st.AssertExpectations(t)
}

func TestAcquireContent_KeepsUserEditedTitleAndExistingImage(t *testing.T) {
	st, sc := &mockStore{}, &mockScraper{}
	e := newTestEnricher(st, sc, &mockQuality{}, &mockVector{})

	sc.On("Scrape", mock.Anything, mock.Anything).Return(&scraper.Result{
		Content:  "scraped body",
		Title:    "Scraped Title",
		ImageURL: "https://example.com/other.jpg",
	}, nil)

	var patch store.CardPatch
	st.On("UpdateCard", mock.Anything, "card-1", mock.AnythingOfType("store.CardPatch")).
		Run(func(args mock.Arguments) { patch = args.Get(2).(store.CardPatch) }).
		Return(nil)

	card := testCard(func(c *model.Card) {
		c.Title = "My Title"
		c.ImageURL = "https://example.com/mine.jpg"
		c.Metadata = map[string]any{model.MetaTitleEditedAt: "2024-01-02T00:00:00Z"}
	})
	res := e.acquireContent(context.Background(), card)

	assert.Nil(t, patch.Title)
	assert.Nil(t, patch.ImageURL)
	assert.Equal(t, "My Title", res.Title)
	assert.Equal(t, "https://example.com/mine.jpg", res.ImageURL)
}

func TestAcquireContent_ShortUserTitleNotOverwritten(t *testing.T) {
	st, sc := &mockStore{}, &mockScraper{}
	e := newTestEnricher(st, sc, &mockQuality{}, &mockVector{})

	sc.On("Scrape", mock.Anything, mock.Anything).Return(&scraper.Result{
		Content: "scraped body",
		Title:   "Scraped Title",
	}, nil)

	var patch store.CardPatch
	st.On("UpdateCard", mock.Anything, "card-1", mock.AnythingOfType("store.CardPatch")).
		Run(func(args mock.Arguments) { patch = args.Get(2).(store.CardPatch) }).
		Return(nil)

	// A short title typed at save time is still the user's title, even
	// without an edit marker. Only empty or the placeholder gets filled.
	card := testCard(func(c *model.Card) { c.Title = "np" })
	res := e.acquireContent(context.Background(), card)

	assert.Nil(t, patch.Title)
	assert.Equal(t, "np", res.Title)
}

func TestAcquireContent_ScrapeFailureIsSoft(t *testing.T) {
	st, sc := &mockStore{}, &mockScraper{}
	e := newTestEnricher(st, sc, &mockQuality{}, &mockVector{})

	sc.On("Scrape", mock.Anything, mock.Anything).Return(nil, eris.New("blocked")).Once()

	res := e.acquireContent(context.Background(), testCard())

	assert.Empty(t, res.Content)
	// Exactly one attempt, no persist.
	sc.AssertNumberOfCalls(t, "Scrape", 1)
	st.AssertNotCalled(t, "UpdateCard")
}

func TestAcquireContent_PersistFailureIsSoft(t *testing.T) {
	st, sc := &mockStore{}, &mockScraper{}
	e := newTestEnricher(st, sc, &mockQuality{}, &mockVector{})

	sc.On("Scrape", mock.Anything, mock.Anything).Return(&scraper.Result{Content: "scraped body"}, nil)
	st.On("UpdateCard", mock.Anything, mock.Anything, mock.Anything).Return(eris.New("db down"))

	res := e.acquireContent(context.Background(), testCard())

	// The in-memory content survives for classification.
	assert.Equal(t, "scraped body", res.Content)
}
