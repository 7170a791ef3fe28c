package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChunks_Empty(t *testing.T) {
	chunks := buildChunks("", 1000, 200)
	assert.Empty(t, chunks)
}

func TestBuildChunks_ShortTextSingleChunk(t *testing.T) {
	text := "A short document that fits in one chunk."
	chunks := buildChunks(text, 1000, 200)

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Overlap)
}

func TestBuildChunks_RoundTrip(t *testing.T) {
	paragraphs := []string{
		"The first paragraph talks about the weather and how it changes with the seasons.",
		"The second paragraph covers economics. Markets rise and fall on sentiment.",
		"A third paragraph describes a small village by the sea where fishermen work at dawn.",
		"Finally a fourth paragraph wraps everything up with a short conclusion.",
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks := buildChunks(text, 100, 20)
	require.Greater(t, len(chunks), 1)

	var b strings.Builder
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		b.WriteString(chunk.Text[chunk.Overlap:])
	}
	assert.Equal(t, text, b.String())
}

func TestBuildChunks_OverlapIsTailOfPriorText(t *testing.T) {
	text := strings.Repeat("word one two three four five. ", 30)
	chunks := buildChunks(text, 100, 20)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, 0, chunks[0].Overlap)

	consumed := len(chunks[0].Text)
	for _, chunk := range chunks[1:] {
		require.LessOrEqual(t, chunk.Overlap, 20)
		prefix := chunk.Text[:chunk.Overlap]
		assert.Equal(t, text[consumed-chunk.Overlap:consumed], prefix)
		consumed += len(chunk.Text) - chunk.Overlap
	}
	assert.Equal(t, len(text), consumed)
}

func TestBuildChunks_SizeBound(t *testing.T) {
	text := strings.Repeat("a sentence of moderate length that repeats. ", 50)
	size, overlap := 120, 30
	chunks := buildChunks(text, size, overlap)

	for _, chunk := range chunks {
		// Own contribution respects the size limit; the stored text may
		// additionally carry up to overlap bytes of prefix
		assert.LessOrEqual(t, len(chunk.Text)-chunk.Overlap, size)
		assert.LessOrEqual(t, len(chunk.Text), size+overlap)
	}
}

func TestBuildChunks_HardCutWithoutSeparators(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := buildChunks(text, 1000, 200)

	require.Len(t, chunks, 3)
	assert.Equal(t, 1000, len(chunks[0].Text))
	assert.Equal(t, 0, chunks[0].Overlap)
	assert.Equal(t, 200, chunks[1].Overlap)

	var b strings.Builder
	for _, chunk := range chunks {
		b.WriteString(chunk.Text[chunk.Overlap:])
	}
	assert.Equal(t, text, b.String())
}

func TestBuildChunks_PrefersParagraphBoundaries(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."
	chunks := buildChunks(text, 25, 5)

	// Each paragraph is under the limit, so every split lands on a
	// paragraph boundary
	require.Len(t, chunks, 3)
	assert.Equal(t, "First paragraph.\n\n", chunks[0].Text)
	assert.True(t, strings.HasSuffix(chunks[1].Text, "Second paragraph.\n\n"))
	assert.True(t, strings.HasSuffix(chunks[2].Text, "Third paragraph."))
}
