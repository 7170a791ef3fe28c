package repositories

import (
	"math"
	"sort"

	"doc-chat/internal/models"
)

// VectorIndex is an in-process similarity index over the chunks of one
// document: brute-force cosine similarity over one embedding per chunk.
// An index is immutable after construction; reprocessing a document builds
// a fresh index and swaps it in wholesale, so concurrent readers always see
// one consistent snapshot.
type VectorIndex struct {
	chunks  []models.Chunk
	vectors [][]float32
}

// ScoredChunk is a retrieval hit: the chunk plus its similarity to the query
type ScoredChunk struct {
	Chunk models.Chunk `json:"chunk"`
	Score float64      `json:"score"`
}

// NewVectorIndex builds an index from parallel chunk and embedding slices
func NewVectorIndex(chunks []models.Chunk, vectors [][]float32) (*VectorIndex, error) {
	if len(chunks) != len(vectors) {
		return nil, &models.ValidationError{Field: "vectors", Message: "chunk and embedding counts do not match"}
	}
	ix := &VectorIndex{
		chunks:  make([]models.Chunk, len(chunks)),
		vectors: make([][]float32, len(vectors)),
	}
	copy(ix.chunks, chunks)
	copy(ix.vectors, vectors)
	return ix, nil
}

// Len returns the number of indexed chunks
func (ix *VectorIndex) Len() int {
	return len(ix.chunks)
}

// Search returns the topK chunks most similar to the query embedding,
// ordered by descending cosine similarity
func (ix *VectorIndex) Search(query []float32, topK int) []ScoredChunk {
	if topK <= 0 {
		topK = 5
	}

	scored := make([]ScoredChunk, len(ix.chunks))
	for i := range ix.chunks {
		scored[i] = ScoredChunk{Chunk: ix.chunks[i], Score: cosineSimilarity(ix.vectors[i], query)}
	}
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK]
}

// SearchMMR retrieves fetchK candidates by cosine similarity, then selects
// topK of them by maximal marginal relevance: each pick maximizes
// lambda*sim(query, chunk) - (1-lambda)*max sim(chunk, already picked),
// trading raw relevance against redundancy among the selected chunks.
func (ix *VectorIndex) SearchMMR(query []float32, fetchK, topK int, lambda float64) []ScoredChunk {
	if fetchK <= 0 {
		fetchK = 10
	}
	if topK <= 0 {
		topK = 5
	}
	if topK > fetchK {
		topK = fetchK
	}
	if lambda < 0 || lambda > 1 {
		lambda = 0.5
	}

	type candidate struct {
		idx   int
		score float64
	}
	candidates := make([]candidate, len(ix.chunks))
	for i := range ix.chunks {
		candidates[i] = candidate{idx: i, score: cosineSimilarity(ix.vectors[i], query)}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})
	if fetchK > len(candidates) {
		fetchK = len(candidates)
	}
	candidates = candidates[:fetchK]

	selected := make([]ScoredChunk, 0, topK)
	selectedIdx := make([]int, 0, topK)
	picked := make(map[int]bool, topK)

	for len(selected) < topK && len(selected) < len(candidates) {
		bestPos := -1
		bestValue := math.Inf(-1)
		for pos, c := range candidates {
			if picked[pos] {
				continue
			}
			redundancy := 0.0
			for _, si := range selectedIdx {
				if sim := cosineSimilarity(ix.vectors[c.idx], ix.vectors[si]); sim > redundancy {
					redundancy = sim
				}
			}
			value := lambda*c.score - (1-lambda)*redundancy
			if value > bestValue {
				bestValue = value
				bestPos = pos
			}
		}
		if bestPos < 0 {
			break
		}
		picked[bestPos] = true
		c := candidates[bestPos]
		selectedIdx = append(selectedIdx, c.idx)
		selected = append(selected, ScoredChunk{Chunk: ix.chunks[c.idx], Score: c.score})
	}

	return selected
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
