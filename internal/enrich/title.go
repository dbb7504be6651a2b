package enrich

import (
	"net/url"
	"strconv"
	"strings"
)

// PlaceholderTitle is the title the clients assign to a freshly saved
// link before enrichment has run.
const PlaceholderTitle = "Link"

// explicitTitlePlatforms are platforms whose pages carry an
// authoritative title. A good title already on the card (usually the
// scraped page title) is kept on these; everywhere else the page title
// is a caption at best and the classifier's suggestion replaces it.
var explicitTitlePlatforms = map[string]bool{
	"youtube":    true,
	"reddit":     true,
	"article":    true,
	"letterboxd": true,
	"imdb":       true,
	"goodreads":  true,
	"amazon":     true,
	"storygraph": true,
}

// moviePlatforms get year and star-rating extraction from the title.
var moviePlatforms = map[string]bool{
	"letterboxd": true,
	"imdb":       true,
}

// platformHosts maps URL hosts to platform labels, checked by suffix so
// subdomains (www, m, old) match.
var platformHosts = map[string]string{
	"youtube.com":           "youtube",
	"youtu.be":              "youtube",
	"reddit.com":            "reddit",
	"letterboxd.com":        "letterboxd",
	"imdb.com":              "imdb",
	"goodreads.com":         "goodreads",
	"amazon.com":            "amazon",
	"thestorygraph.com":     "storygraph",
	"app.thestorygraph.com": "storygraph",
	"instagram.com":         "instagram",
	"twitter.com":           "twitter",
	"x.com":                 "twitter",
	"tiktok.com":            "tiktok",
	"pinterest.com":         "pinterest",
	"spotify.com":           "spotify",
	"open.spotify.com":      "spotify",
}

// DetectPlatform derives a platform label from a card URL. Unknown
// hosts are labeled "article" when a URL is present, "" otherwise.
func DetectPlatform(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	for suffix, platform := range platformHosts {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return platform
		}
	}
	return "article"
}

// IsGoodTitle reports whether a title is worth keeping: non-empty, not
// the save-time placeholder, and long enough to mean something.
func IsGoodTitle(title string) bool {
	t := strings.TrimSpace(title)
	return t != "" && t != PlaceholderTitle && len(t) > 3
}

// TitleDecision is the outcome of title resolution. A nil Title means
// leave the stored title alone; Year and Rating are set only when
// extracted from a movie title.
type TitleDecision struct {
	Title  *string
	Year   *int
	Rating *float64
}

// ResolveTitle decides what the card's title should be after
// classification. User-edited titles are never touched. On platforms
// with authoritative page titles a good current title is kept, with
// movie platforms stripping a trailing "(year)" and star rating out of
// it into metadata (never overwriting values that already exist). On
// caption-only platforms, or when the current title is empty or the
// placeholder, the classifier's suggestion replaces it.
func ResolveTitle(current string, userEdited bool, platform, suggested string, yearSet, ratingSet bool) TitleDecision {
	if userEdited {
		return TitleDecision{}
	}

	source := suggested
	if explicitTitlePlatforms[platform] && IsGoodTitle(current) {
		if !moviePlatforms[platform] {
			return TitleDecision{}
		}
		source = current
	}
	if !IsGoodTitle(source) {
		return TitleDecision{}
	}

	title := source
	var decision TitleDecision

	if moviePlatforms[platform] {
		cleaned, year, rating := CleanMovieTitle(title)
		title = cleaned
		if year != 0 && !yearSet {
			y := year
			decision.Year = &y
		}
		if rating != 0 && !ratingSet {
			r := rating
			decision.Rating = &r
		}
	}

	if title != current {
		decision.Title = &title
	}
	return decision
}

// CleanMovieTitle strips a trailing star rating and "(year)" from a
// movie title, returning the cleaned title plus the extracted values.
// A half star "½" counts as 0.5. Zero means not present.
func CleanMovieTitle(title string) (string, int, float64) {
	t := strings.TrimSpace(title)

	var rating float64
	for strings.HasSuffix(t, "½") {
		rating += 0.5
		t = strings.TrimSpace(strings.TrimSuffix(t, "½"))
	}
	for strings.HasSuffix(t, "★") {
		rating++
		t = strings.TrimSpace(strings.TrimSuffix(t, "★"))
	}

	var year int
	if i := strings.LastIndex(t, "("); i >= 0 && strings.HasSuffix(t, ")") {
		inner := t[i+1 : len(t)-1]
		if y, err := strconv.Atoi(inner); err == nil && y >= 1880 && y <= 2100 {
			year = y
			t = strings.TrimSpace(t[:i])
		}
	}

	return t, year, rating
}
