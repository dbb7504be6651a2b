package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Interface compliance.
var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

func TestCardPatch_IsZero(t *testing.T) {
	assert.True(t, CardPatch{}.IsZero())

	title := "x"
	assert.False(t, CardPatch{Title: &title}.IsZero())
	assert.False(t, CardPatch{Tags: []string{}}.IsZero())
	assert.False(t, CardPatch{MergeMetadata: map[string]any{"k": 1}}.IsZero())
}

func TestMergeMetadata(t *testing.T) {
	existing := map[string]any{"a": 1, "b": "keep", "c": true}
	patch := map[string]any{"a": 2, "c": nil, "d": "new"}

	merged := mergeMetadata(existing, patch)

	assert.Equal(t, 2, merged["a"])
	assert.Equal(t, "keep", merged["b"])
	assert.NotContains(t, merged, "c")
	assert.Equal(t, "new", merged["d"])
	// Input maps are not mutated.
	assert.Equal(t, true, existing["c"])
}
