package services

import (
	"context"
	"log"
	"strings"

	"doc-chat/internal/models"
	"doc-chat/internal/repositories"
)

// IndexingService builds a vector index from extracted document text
type IndexingService interface {
	BuildIndex(ctx context.Context, text string) (*repositories.VectorIndex, error)
}

// ChunkIndexingService splits text into overlapping chunks, embeds them and
// assembles the in-process vector index
type ChunkIndexingService struct {
	embedder  EmbeddingClient
	chunkSize int
	overlap   int
	logger    *log.Logger
}

// NewChunkIndexingService creates an indexing service with the default
// chunking parameters
func NewChunkIndexingService(embedder EmbeddingClient, logger *log.Logger) *ChunkIndexingService {
	return &ChunkIndexingService{
		embedder:  embedder,
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		logger:    logger,
	}
}

// BuildIndex chunks and embeds the text. Text with no content to index is
// rejected before any embedding call is made.
func (s *ChunkIndexingService) BuildIndex(ctx context.Context, text string) (*repositories.VectorIndex, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &models.IndexingError{Message: "document text is empty"}
	}

	chunks := buildChunks(text, s.chunkSize, s.overlap)
	s.logger.Printf("Indexing: split %d characters into %d chunks", len(text), len(chunks))

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, &models.IndexingError{Message: "embedding failed", Err: err}
	}
	if len(vectors) != len(chunks) {
		return nil, &models.IndexingError{Message: "embedding count does not match chunk count"}
	}

	index, err := repositories.NewVectorIndex(chunks, vectors)
	if err != nil {
		return nil, &models.IndexingError{Message: "failed to assemble index", Err: err}
	}

	s.logger.Printf("Indexing: built index with %d chunks", index.Len())
	return index, nil
}
