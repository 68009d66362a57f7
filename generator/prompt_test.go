package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	table := DefaultConfig().Variants

	t.Run("lists requested variants in order", func(t *testing.T) {
		p, err := BuildPrompt([]string{"main", "cool"}, table, "CONTEXT")
		require.NoError(t, err)

		assert.Contains(t, p, "following 2 tones")
		assert.Contains(t, p, "1. Friendly")
		assert.Contains(t, p, "2. Cool")
		assert.NotContains(t, p, "Warm (")
		assert.Contains(t, p, `"main": "..."`)
		assert.Contains(t, p, `"cool": "..."`)
		assert.NotContains(t, p, `"warm": "..."`)
		assert.True(t, strings.HasSuffix(p, "### Context\nCONTEXT\n"))
		assert.Less(t, strings.Index(p, `"main"`), strings.Index(p, `"cool"`))
	})

	t.Run("deterministic", func(t *testing.T) {
		a, err := BuildPrompt([]string{"warm", "playful"}, table, "ctx")
		require.NoError(t, err)
		b, err := BuildPrompt([]string{"warm", "playful"}, table, "ctx")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("rejects empty and unknown sets", func(t *testing.T) {
		_, err := BuildPrompt(nil, table, "ctx")
		assert.ErrorIs(t, err, ErrInvalidVariantSet)

		_, err = BuildPrompt([]string{"main", "spicy"}, table, "ctx")
		assert.ErrorIs(t, err, ErrInvalidVariantSet)
	})
}
