package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTopKeywords(t *testing.T) {
	extractor := NewKeywordExtractor()
	text := "The quarterly report shows strong revenue growth. Revenue increased across European markets, and the report highlights new shipping contracts."

	keywords, err := extractor.ExtractTopKeywords(text, 5)

	require.NoError(t, err)
	require.NotEmpty(t, keywords)
	assert.LessOrEqual(t, len(keywords), 5)
	assert.Contains(t, keywords, "revenue")

	for _, kw := range keywords {
		assert.NotContains(t, []string{"the", "and", "shows"}, kw)
		assert.GreaterOrEqual(t, len(kw), 2)
	}
}

func TestExtractKeywords_SkipsNumbersAndPunctuation(t *testing.T) {
	extractor := NewKeywordExtractor()

	keywords, err := extractor.ExtractKeywords("Contract 12345 signed !!! by partners in 2024.")

	require.NoError(t, err)
	for _, kw := range keywords {
		assert.NotEqual(t, "12345", kw.Word)
		assert.NotEqual(t, "2024", kw.Word)
		assert.NotEqual(t, "!!!", kw.Word)
	}
}
