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

	"doc-chat/internal/models"
)

// GenerateRequest carries everything the model needs to answer one
// question: the grounding instruction, retrieved context, prior exchanges
// and per-session generation settings.
type GenerateRequest struct {
	System      string
	History     []models.TurnPair
	Context     []string
	Question    string
	Temperature float64
	MaxTokens   int
}

// LLMClient generates grounded answers from retrieved context
type LLMClient interface {
	Generate(ctx context.Context, req *GenerateRequest) (string, error)
	HealthCheck(ctx context.Context) error
}

// GeminiLLMClient calls the Gemini generateContent API
type GeminiLLMClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *log.Logger
}

// NewGeminiLLMClient creates an LLM client for the given endpoint and key
func NewGeminiLLMClient(baseURL, apiKey string, logger *log.Logger) *GeminiLLMClient {
	return &GeminiLLMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   "gemini-2.0-flash",
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateContentRequest struct {
	SystemInstruction *generateContent  `json:"systemInstruction,omitempty"`
	Contents          []generateContent `json:"contents"`
	GenerationConfig  generationConfig  `json:"generationConfig"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []generatePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate produces an answer to the question using the provided context
// chunks and conversation history
func (c *GeminiLLMClient) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	c.logger.Printf("LLM: generating answer (context chunks=%d, history pairs=%d, temp=%.2f, max_tokens=%d)",
		len(req.Context), len(req.History), req.Temperature, req.MaxTokens)

	body := generateContentRequest{
		Contents: buildContents(req),
		GenerationConfig: generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &generateContent{Parts: []generatePart{{Text: req.System}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode generation request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read generation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("LLM service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result generateContentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("LLM service returned no candidates")
	}

	var answer strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		answer.WriteString(part.Text)
	}
	return strings.TrimSpace(answer.String()), nil
}

// HealthCheck verifies the model endpoint is reachable
func (c *GeminiLLMClient) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1beta/models/%s?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("LLM service unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("LLM service returned status %d", resp.StatusCode)
	}
	return nil
}

// buildContents lays the conversation out as alternating user/model turns,
// with the retrieved context prepended to the final user message
func buildContents(req *GenerateRequest) []generateContent {
	contents := make([]generateContent, 0, 2*len(req.History)+1)
	for _, pair := range req.History {
		contents = append(contents,
			generateContent{Role: "user", Parts: []generatePart{{Text: pair.User}}},
			generateContent{Role: "model", Parts: []generatePart{{Text: pair.Assistant}}},
		)
	}

	var final strings.Builder
	if len(req.Context) > 0 {
		final.WriteString("Context from the document:\n\n")
		for i, chunk := range req.Context {
			fmt.Fprintf(&final, "[%d] %s\n\n", i+1, chunk)
		}
		final.WriteString("Question: ")
	}
	final.WriteString(req.Question)

	return append(contents, generateContent{Role: "user", Parts: []generatePart{{Text: final.String()}}})
}
