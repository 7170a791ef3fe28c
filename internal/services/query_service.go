package services

import (
	"context"
	"log"

	"doc-chat/internal/models"
	"doc-chat/internal/repositories"
)

// Retrieval parameters: fetch a wider candidate set by similarity, then
// select a diverse subset by maximal marginal relevance
const (
	retrievalFetchK = 10
	retrievalTopK   = 5
	retrievalLambda = 0.5
)

// groundingPrompt keeps answers anchored to the retrieved document text
const groundingPrompt = "You are a helpful assistant answering questions about a document. " +
	"Answer using only the provided context from the document. " +
	"If the context does not contain the answer, say you cannot find it in the document. " +
	"Be concise and cite the relevant part of the context when possible."

// QueryService answers questions against a session's document index
type QueryService interface {
	Answer(ctx context.Context, sessionID string, index *repositories.VectorIndex, question string, history []models.TurnPair, temperature float64, maxTokens int) (string, []models.Chunk, error)
	Retrieve(ctx context.Context, sessionID string, index *repositories.VectorIndex, query string, topK int) ([]models.Chunk, error)
}

// RAGQueryService retrieves relevant chunks and generates a grounded answer
type RAGQueryService struct {
	embedder EmbeddingClient
	llm      LLMClient
	logger   *log.Logger
}

// NewRAGQueryService creates a query service over the given embedding and
// LLM clients
func NewRAGQueryService(embedder EmbeddingClient, llm LLMClient, logger *log.Logger) *RAGQueryService {
	return &RAGQueryService{
		embedder: embedder,
		llm:      llm,
		logger:   logger,
	}
}

// Answer retrieves context for the question and asks the model for a
// grounded answer, returning the answer plus the source chunks used
func (s *RAGQueryService) Answer(ctx context.Context, sessionID string, index *repositories.VectorIndex, question string, history []models.TurnPair, temperature float64, maxTokens int) (string, []models.Chunk, error) {
	if index == nil {
		return "", nil, &models.NotReadyError{SessionID: sessionID}
	}

	s.logger.Printf("Query: answering for session %s (history pairs=%d)", sessionID, len(history))

	queryVec, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return "", nil, &models.QueryError{Message: "failed to embed question", Err: err}
	}

	hits := index.SearchMMR(queryVec, retrievalFetchK, retrievalTopK, retrievalLambda)
	sources := make([]models.Chunk, len(hits))
	contexts := make([]string, len(hits))
	for i, hit := range hits {
		sources[i] = hit.Chunk
		contexts[i] = hit.Chunk.Text
	}

	answer, err := s.llm.Generate(ctx, &GenerateRequest{
		System:      groundingPrompt,
		History:     history,
		Context:     contexts,
		Question:    question,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", nil, &models.QueryError{Message: "generation failed", Err: err}
	}

	s.logger.Printf("Query: answered for session %s using %d source chunks", sessionID, len(sources))
	return answer, sources, nil
}

// Retrieve returns the raw retrieval results for a query without invoking
// the LLM
func (s *RAGQueryService) Retrieve(ctx context.Context, sessionID string, index *repositories.VectorIndex, query string, topK int) ([]models.Chunk, error) {
	if index == nil {
		return nil, &models.NotReadyError{SessionID: sessionID}
	}
	if topK <= 0 {
		topK = retrievalTopK
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, &models.QueryError{Message: "failed to embed query", Err: err}
	}

	hits := index.SearchMMR(queryVec, retrievalFetchK, topK, retrievalLambda)
	chunks := make([]models.Chunk, len(hits))
	for i, hit := range hits {
		chunks[i] = hit.Chunk
	}
	return chunks, nil
}
