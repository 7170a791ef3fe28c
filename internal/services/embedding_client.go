package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// EmbeddingClient turns text into embedding vectors
type EmbeddingClient interface {
	// EmbedBatch embeds document chunks, returning one vector per input in
	// the same order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single retrieval query
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// GeminiEmbeddingClient calls the Gemini embedding API
type GeminiEmbeddingClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *log.Logger
}

// NewGeminiEmbeddingClient creates an embedding client for the given
// endpoint and key
func NewGeminiEmbeddingClient(baseURL, apiKey string, logger *log.Logger) *GeminiEmbeddingClient {
	return &GeminiEmbeddingClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   "embedding-001",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type embedRequest struct {
	Model   string       `json:"model,omitempty"`
	Content embedContent `json:"content"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type embedding struct {
	Values []float32 `json:"values"`
}

type batchEmbedResponse struct {
	Embeddings []embedding `json:"embeddings"`
}

type embedResponse struct {
	Embedding embedding `json:"embedding"`
}

// EmbedBatch embeds document chunks in a single batch call
func (c *GeminiEmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	c.logger.Printf("Embeddings: embedding batch of %d texts", len(texts))

	reqBody := batchEmbedRequest{Requests: make([]embedRequest, len(texts))}
	for i, text := range texts {
		reqBody.Requests[i] = embedRequest{
			Model:   "models/" + c.model,
			Content: embedContent{Parts: []embedPart{{Text: text}}},
		}
	}

	var result batchEmbedResponse
	if err := c.post(ctx, ":batchEmbedContents", reqBody, &result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d texts", len(result.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

// EmbedQuery embeds a single retrieval query
func (c *GeminiEmbeddingClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	reqBody := embedRequest{
		Content: embedContent{Parts: []embedPart{{Text: text}}},
	}

	var result embedResponse
	if err := c.post(ctx, ":embedContent", reqBody, &result); err != nil {
		return nil, err
	}
	if len(result.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}
	return result.Embedding.Values, nil
}

func (c *GeminiEmbeddingClient) post(ctx context.Context, method string, reqBody, out any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to encode embedding request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s%s?key=%s", c.baseURL, c.model, method, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode embedding response: %w", err)
	}
	return nil
}
