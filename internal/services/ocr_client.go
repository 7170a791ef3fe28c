package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OCRClient extracts text from binary documents through an external OCR
// service. The raw provider response is returned as-is; the extraction
// service owns decoding it.
type OCRClient interface {
	ExtractDocument(ctx context.Context, data []byte, filename string, isImage bool) (json.RawMessage, error)
	HealthCheck(ctx context.Context) error
}

// MistralOCRClient calls the Mistral OCR API. Uploads are staged through a
// temp file that is removed once the request body has been built.
type MistralOCRClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *log.Logger
}

// NewMistralOCRClient creates an OCR client for the given endpoint and key
func NewMistralOCRClient(baseURL, apiKey string, logger *log.Logger) *MistralOCRClient {
	return &MistralOCRClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   "mistral-ocr-latest",
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	ImageURL    string `json:"image_url,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
}

// ExtractDocument sends the document to the OCR service and returns the raw
// JSON response body
func (c *MistralOCRClient) ExtractDocument(ctx context.Context, data []byte, filename string, isImage bool) (json.RawMessage, error) {
	c.logger.Printf("OCR: extracting %s (%d bytes, image=%v)", filename, len(data), isImage)

	dataURL, err := c.stageAsDataURL(data, filename)
	if err != nil {
		return nil, err
	}

	reqBody := ocrRequest{Model: c.model}
	if isImage {
		reqBody.Document = ocrDocument{Type: "image_url", ImageURL: dataURL}
	} else {
		reqBody.Document = ocrDocument{Type: "document_url", DocumentURL: dataURL}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ocr", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read OCR response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR service returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Printf("OCR: received %d byte response for %s", len(body), filename)
	return json.RawMessage(body), nil
}

// HealthCheck verifies the OCR service is reachable with the configured key
func (c *MistralOCRClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("OCR service unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OCR service returned status %d", resp.StatusCode)
	}
	return nil
}

// stageAsDataURL writes the upload to a temp file, reads it back and encodes
// it as a base64 data URL. The temp file is removed before returning.
func (c *MistralOCRClient) stageAsDataURL(data []byte, filename string) (string, error) {
	tmp, err := os.CreateTemp("", "ocr-upload-*"+filepath.Ext(filename))
	if err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}

	staged, err := os.ReadFile(tmpName)
	if err != nil {
		return "", fmt.Errorf("failed to read staged upload: %w", err)
	}

	return fmt.Sprintf("data:%s;base64,%s", mimeTypeFor(filename), base64.StdEncoding.EncodeToString(staged)), nil
}

func mimeTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
