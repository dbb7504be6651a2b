package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// normalizeTags folds the classifier's tag suggestions onto the user's
// existing vocabulary so "Recipes" does not become a second tag next to
// "recipes". Both failure modes are soft: a vocabulary lookup failure
// skips normalization entirely, a normalization-service failure falls
// back to a local case-fold match.
func (e *Enricher) normalizeTags(ctx context.Context, userID string, suggested []string) []string {
	if len(suggested) == 0 {
		return nil
	}
	log := zap.L().With(zap.String("userId", userID))

	vocabulary, err := e.store.ListDistinctTags(ctx, userID)
	if err != nil {
		log.Warn("tag vocabulary lookup failed, using raw suggestions", zap.Error(err))
		return dedupeTags(suggested)
	}

	normalized, err := e.quality.NormalizeTags(ctx, suggested, vocabulary)
	if err != nil {
		log.Warn("tag normalization failed, using local fold match", zap.Error(err))
		return foldMatch(suggested, vocabulary)
	}
	return dedupeTags(normalized)
}

// foldMatch maps each suggestion onto an existing vocabulary tag when
// the two differ only by case or a trailing plural "s"; unmatched
// suggestions are kept as-is.
func foldMatch(suggested, vocabulary []string) []string {
	folder := cases.Fold()
	folded := make(map[string]string, len(vocabulary))
	for _, v := range vocabulary {
		key := folder.String(v)
		if _, ok := folded[key]; !ok {
			folded[key] = v
		}
		singular := strings.TrimSuffix(key, "s")
		if singular != key {
			if _, ok := folded[singular]; !ok {
				folded[singular] = v
			}
		}
	}

	out := make([]string, 0, len(suggested))
	for _, s := range suggested {
		key := folder.String(s)
		if match, ok := folded[key]; ok {
			out = append(out, match)
			continue
		}
		if match, ok := folded[strings.TrimSuffix(key, "s")]; ok {
			out = append(out, match)
			continue
		}
		out = append(out, s)
	}
	return dedupeTags(out)
}

// dedupeTags removes duplicates and empty entries, preserving order.
func dedupeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
