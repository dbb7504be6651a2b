package model

import "time"

// CardType classifies what kind of content a card holds.
type CardType string

const (
	CardTypeArticle CardType = "article"
	CardTypeVideo   CardType = "video"
	CardTypeNote    CardType = "note"
	CardTypeImage   CardType = "image"
	CardTypeAudio   CardType = "audio"
	CardTypeProduct CardType = "product"
	CardTypeLink    CardType = "link"
)

// AllCardTypes returns every valid card type.
func AllCardTypes() []CardType {
	return []CardType{
		CardTypeArticle,
		CardTypeVideo,
		CardTypeNote,
		CardTypeImage,
		CardTypeAudio,
		CardTypeProduct,
		CardTypeLink,
	}
}

// ParseCardType validates a raw type string, falling back to "link" for
// anything the classifier invents that we do not recognize.
func ParseCardType(raw string) CardType {
	ct := CardType(raw)
	for _, t := range AllCardTypes() {
		if t == ct {
			return ct
		}
	}
	return CardTypeLink
}

// Metadata keys used by the enrichment pipeline. The metadata map is
// open: user-facing fields (notes, favorites, ...) live alongside these
// and must survive enrichment writes untouched.
const (
	MetaProcessing         = "processing"
	MetaEnrichmentError    = "enrichmentError"
	MetaEnrichmentFailedAt = "enrichmentFailedAt"
	MetaEnrichmentTiming   = "enrichmentTiming"
	MetaEnrichedAt         = "enrichedAt"
	MetaTitleEditedAt      = "titleEditedAt"
	MetaSummaryEditedAt    = "summaryEditedAt"
	MetaSummary            = "summary"
	MetaPlatform           = "platform"
	MetaPublishedAt        = "publishedAt"
	MetaYear               = "year"
	MetaRating             = "rating"
	MetaColors             = "colors"
	MetaObjects            = "objects"
	MetaOCRText            = "ocrText"
)

// Card is a single saved item (link, note, or image) owned by a user.
type Card struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	URL       string         `json:"url,omitempty"`
	Content   string         `json:"content,omitempty"`
	Title     string         `json:"title,omitempty"`
	ImageURL  string         `json:"image_url,omitempty"`
	Type      CardType       `json:"type"`
	Tags      []string       `json:"tags"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
}

// Meta returns a metadata value, or nil when absent.
func (c *Card) Meta(key string) any {
	if c.Metadata == nil {
		return nil
	}
	return c.Metadata[key]
}

// MetaString returns a metadata value as a string, or "" when absent or
// not a string.
func (c *Card) MetaString(key string) string {
	s, _ := c.Meta(key).(string)
	return s
}

// HasMeta reports whether a metadata key is present and non-nil.
func (c *Card) HasMeta(key string) bool {
	return c.Meta(key) != nil
}

// TitleEdited reports whether the user has manually edited the title;
// an edited title is never overwritten by enrichment.
func (c *Card) TitleEdited() bool {
	return c.HasMeta(MetaTitleEditedAt)
}

// SummaryEdited reports whether the user has manually edited the summary.
func (c *Card) SummaryEdited() bool {
	return c.HasMeta(MetaSummaryEditedAt)
}
