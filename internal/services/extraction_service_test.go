package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"testing"

	"doc-chat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOCRClient struct {
	mock.Mock
}

func (m *MockOCRClient) ExtractDocument(ctx context.Context, data []byte, filename string, isImage bool) (json.RawMessage, error) {
	args := m.Called(ctx, data, filename, isImage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockOCRClient) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func setupExtractionService(t *testing.T) (*DocumentExtractionService, *MockOCRClient) {
	t.Helper()
	mockOCR := &MockOCRClient{}
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	return NewDocumentExtractionService(mockOCR, logger), mockOCR
}

func TestExtract_UnsupportedKind(t *testing.T) {
	service, mockOCR := setupExtractionService(t)

	_, err := service.Extract(context.Background(), []byte("data"), "file.xyz", models.DocumentKind("spreadsheet"), false)

	var kindErr *models.UnsupportedKindError
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, "spreadsheet", kindErr.Kind)
	mockOCR.AssertNotCalled(t, "ExtractDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExtract_PagesMarkdownShape(t *testing.T) {
	service, mockOCR := setupExtractionService(t)
	ctx := context.Background()

	resp := json.RawMessage(`{"pages":[{"markdown":"Page one text"},{"markdown":"Page two text"}]}`)
	mockOCR.On("ExtractDocument", ctx, mock.AnythingOfType("[]uint8"), "scan.pdf", false).Return(resp, nil)

	text, err := service.Extract(ctx, []byte("pdf bytes"), "scan.pdf", models.KindPDF, false)

	require.NoError(t, err)
	assert.Equal(t, "Page one text\n\nPage two text", text)
	mockOCR.AssertExpectations(t)
}

func TestExtract_PagesTextFallback(t *testing.T) {
	service, mockOCR := setupExtractionService(t)
	ctx := context.Background()

	resp := json.RawMessage(`{"pages":[{"text":"Plain page"}]}`)
	mockOCR.On("ExtractDocument", ctx, mock.Anything, "photo.png", true).Return(resp, nil)

	text, err := service.Extract(ctx, []byte("img"), "photo.png", models.KindImage, false)

	require.NoError(t, err)
	assert.Equal(t, "Plain page", text)
}

func TestExtract_TopLevelTextShape(t *testing.T) {
	service, mockOCR := setupExtractionService(t)
	ctx := context.Background()

	resp := json.RawMessage(`{"text":"whole document text"}`)
	mockOCR.On("ExtractDocument", ctx, mock.Anything, "doc.pdf", false).Return(resp, nil)

	text, err := service.Extract(ctx, []byte("pdf"), "doc.pdf", models.KindPDF, false)

	require.NoError(t, err)
	assert.Equal(t, "whole document text", text)
}

func TestExtract_NestedDocumentTextShape(t *testing.T) {
	service, mockOCR := setupExtractionService(t)
	ctx := context.Background()

	resp := json.RawMessage(`{"document":{"text":"nested text"}}`)
	mockOCR.On("ExtractDocument", ctx, mock.Anything, "doc.pdf", false).Return(resp, nil)

	text, err := service.Extract(ctx, []byte("pdf"), "doc.pdf", models.KindPDF, false)

	require.NoError(t, err)
	assert.Equal(t, "nested text", text)
}

func TestExtract_ContentShape(t *testing.T) {
	service, mockOCR := setupExtractionService(t)
	ctx := context.Background()

	resp := json.RawMessage(`{"content":"content field text"}`)
	mockOCR.On("ExtractDocument", ctx, mock.Anything, "doc.pdf", false).Return(resp, nil)

	text, err := service.Extract(ctx, []byte("pdf"), "doc.pdf", models.KindPDF, false)

	require.NoError(t, err)
	assert.Equal(t, "content field text", text)
}

func TestExtract_PagesTakePriorityOverText(t *testing.T) {
	service, mockOCR := setupExtractionService(t)
	ctx := context.Background()

	resp := json.RawMessage(`{"pages":[{"markdown":"from pages"}],"text":"from text"}`)
	mockOCR.On("ExtractDocument", ctx, mock.Anything, "doc.pdf", false).Return(resp, nil)

	text, err := service.Extract(ctx, []byte("pdf"), "doc.pdf", models.KindPDF, false)

	require.NoError(t, err)
	assert.Equal(t, "from pages", text)
}

func TestExtract_UnrecognizedResponse(t *testing.T) {
	service, mockOCR := setupExtractionService(t)
	ctx := context.Background()

	resp := json.RawMessage(`{"something":"else"}`)
	mockOCR.On("ExtractDocument", ctx, mock.Anything, "doc.pdf", false).Return(resp, nil)

	_, err := service.Extract(ctx, []byte("pdf"), "doc.pdf", models.KindPDF, false)

	var extractErr *models.ExtractionError
	require.ErrorAs(t, err, &extractErr)
}

func TestExtract_OCRFailure(t *testing.T) {
	service, mockOCR := setupExtractionService(t)
	ctx := context.Background()

	mockOCR.On("ExtractDocument", ctx, mock.Anything, "doc.pdf", false).Return(nil, errors.New("service unavailable"))

	_, err := service.Extract(ctx, []byte("pdf"), "doc.pdf", models.KindPDF, false)

	var extractErr *models.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Contains(t, err.Error(), "service unavailable")
}

func TestExtract_StripMarkup(t *testing.T) {
	service, mockOCR := setupExtractionService(t)
	ctx := context.Background()

	resp := json.RawMessage(`{"pages":[{"markdown":"# Heading\n\n**Bold** body"}]}`)
	mockOCR.On("ExtractDocument", ctx, mock.Anything, "doc.pdf", false).Return(resp, nil)

	text, err := service.Extract(ctx, []byte("pdf"), "doc.pdf", models.KindPDF, true)

	require.NoError(t, err)
	assert.Equal(t, "Heading\n\nBold body", text)
}

// buildTestDocx assembles a minimal .docx archive in memory
func buildTestDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtract_WordDocumentParagraphs(t *testing.T) {
	service, mockOCR := setupExtractionService(t)

	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	text, err := service.Extract(context.Background(), buildTestDocx(t, docXML), "report.docx", models.KindWordDocument, false)

	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\nSecond paragraph.\n", text)
	mockOCR.AssertNotCalled(t, "ExtractDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// Empty paragraphs carry the document's spacing and must survive as blank
// lines
func TestExtract_WordDocumentKeepsEmptyParagraphs(t *testing.T) {
	service, _ := setupExtractionService(t)

	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	text, err := service.Extract(context.Background(), buildTestDocx(t, docXML), "spaced.docx", models.KindWordDocument, false)

	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.\n", text)
}

func TestExtract_WordDocumentWithTable(t *testing.T) {
	service, _ := setupExtractionService(t)

	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Intro line.</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Value</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Total</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>42</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

	text, err := service.Extract(context.Background(), buildTestDocx(t, docXML), "table.docx", models.KindWordDocument, false)

	require.NoError(t, err)
	assert.Equal(t, "Intro line.\nName Value\nTotal 42\n\n", text)
}

func TestExtract_WordDocumentInvalidArchive(t *testing.T) {
	service, _ := setupExtractionService(t)

	_, err := service.Extract(context.Background(), []byte("not a zip"), "broken.docx", models.KindWordDocument, false)

	var extractErr *models.ExtractionError
	require.ErrorAs(t, err, &extractErr)
}
