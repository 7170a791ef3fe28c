package services

import (
	"strings"

	"doc-chat/internal/models"
)

// Default chunking parameters
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Separators tried in order when splitting: paragraph breaks first, then
// lines, sentences, words, and finally a hard byte cut
var chunkSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// buildChunks splits text into chunks of at most size bytes, preferring
// splits at the coarsest separator that fits. Each chunk after the first is
// prefixed with up to overlap bytes from the end of the preceding text and
// records that prefix length, so concatenating Text[Overlap:] over all
// chunks reproduces the input exactly.
func buildChunks(text string, size, overlap int) []models.Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	if text == "" {
		return []models.Chunk{}
	}

	pieces := splitBySeparators(text, size, chunkSeparators)

	chunks := make([]models.Chunk, 0, len(pieces))
	consumed := 0
	for i, piece := range pieces {
		prefix := ""
		if consumed > 0 {
			start := consumed - overlap
			if start < 0 {
				start = 0
			}
			prefix = text[start:consumed]
		}
		chunks = append(chunks, models.Chunk{
			Index:   i,
			Text:    prefix + piece,
			Overlap: len(prefix),
		})
		consumed += len(piece)
	}
	return chunks
}

// splitBySeparators splits text into pieces of at most size bytes. Segments
// produced by the current separator are merged greedily while they fit; a
// segment that alone exceeds size is split again with the next separator.
// The empty separator is the base case: a hard cut every size bytes.
func splitBySeparators(text string, size int, separators []string) []string {
	if len(text) <= size {
		return []string{text}
	}

	sep := separators[0]
	if sep == "" {
		pieces := make([]string, 0, len(text)/size+1)
		for len(text) > size {
			pieces = append(pieces, text[:size])
			text = text[size:]
		}
		if text != "" {
			pieces = append(pieces, text)
		}
		return pieces
	}

	// SplitAfter keeps the separator attached to the preceding segment, so
	// rejoining the segments reproduces the text byte for byte
	segments := strings.SplitAfter(text, sep)

	pieces := []string{}
	current := ""
	flush := func() {
		if current != "" {
			pieces = append(pieces, current)
			current = ""
		}
	}

	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if len(segment) > size {
			flush()
			pieces = append(pieces, splitBySeparators(segment, size, separators[1:])...)
			continue
		}
		if len(current)+len(segment) > size {
			flush()
		}
		current += segment
	}
	flush()

	return pieces
}
