package enrich

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/cardstash/cardstash/internal/model"
	"github.com/cardstash/cardstash/pkg/vector"
)

func TestBuildEmbeddingText(t *testing.T) {
	card := testCard(func(c *model.Card) {
		c.Title = "Sourdough Basics"
		c.Tags = []string{"baking", "recipes"}
		c.Metadata = map[string]any{model.MetaSummary: "How to feed a starter."}
	})

	text := buildEmbeddingText(card)
	assert.Equal(t, "Sourdough Basics\ntags: baking, recipes\nHow to feed a starter.", text)
}

func TestBuildEmbeddingText_Empty(t *testing.T) {
	card := testCard(func(c *model.Card) {
		c.Title = ""
		c.Tags = nil
	})
	assert.Empty(t, buildEmbeddingText(card))
}

func TestPublishEmbedding_Upserts(t *testing.T) {
	vc := &mockVector{}
	e := newTestEnricher(&mockStore{}, &mockScraper{}, &mockQuality{}, vc)

	var got vector.UpsertRequest
	vc.On("Upsert", mock.Anything, mock.AnythingOfType("vector.UpsertRequest")).
		Run(func(args mock.Arguments) { got = args.Get(1).(vector.UpsertRequest) }).
		Return(nil)

	card := testCard(func(c *model.Card) {
		c.Title = "Sourdough Basics"
		c.Type = model.CardTypeArticle
		c.ImageURL = "https://example.com/loaf.jpg"
	})
	e.publishEmbedding(context.Background(), card)

	assert.Equal(t, "card-1", got.ID)
	assert.Equal(t, "user-1", got.Metadata["userId"])
	assert.Equal(t, "article", got.Metadata["type"])
	assert.Equal(t, "https://example.com/loaf.jpg", got.Metadata["imageUrl"])
}

func TestPublishEmbedding_LongImageURLOmitted(t *testing.T) {
	vc := &mockVector{}
	e := newTestEnricher(&mockStore{}, &mockScraper{}, &mockQuality{}, vc)

	var got vector.UpsertRequest
	vc.On("Upsert", mock.Anything, mock.AnythingOfType("vector.UpsertRequest")).
		Run(func(args mock.Arguments) { got = args.Get(1).(vector.UpsertRequest) }).
		Return(nil)

	card := testCard(func(c *model.Card) {
		c.Title = "Has a data URI image"
		c.ImageURL = "data:image/png;base64," + strings.Repeat("A", 600)
	})
	e.publishEmbedding(context.Background(), card)

	assert.NotContains(t, got.Metadata, "imageUrl")
}

func TestPublishEmbedding_NothingToIndex(t *testing.T) {
	vc := &mockVector{}
	e := newTestEnricher(&mockStore{}, &mockScraper{}, &mockQuality{}, vc)

	card := testCard(func(c *model.Card) {
		c.Title = ""
		c.Tags = nil
	})
	e.publishEmbedding(context.Background(), card)
	vc.AssertNotCalled(t, "Upsert")
}

func TestPublishEmbedding_FailureOnlyLogged(t *testing.T) {
	vc := &mockVector{}
	e := newTestEnricher(&mockStore{}, &mockScraper{}, &mockQuality{}, vc)

	vc.On("Upsert", mock.Anything, mock.Anything).Return(eris.New("index down"))

	card := testCard(func(c *model.Card) { c.Title = "Still Fine" })
	// Must not panic or surface the error.
	e.publishEmbedding(context.Background(), card)
	vc.AssertExpectations(t)
}
