package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"strings"

	"doc-chat/internal/models"
)

// ExtractionService turns an uploaded document into plain text
type ExtractionService interface {
	Extract(ctx context.Context, data []byte, filename string, kind models.DocumentKind, stripMarkup bool) (string, error)
}

// DocumentExtractionService routes extraction by document kind: images and
// PDFs go to the OCR service, Word documents are parsed locally.
type DocumentExtractionService struct {
	ocr    OCRClient
	logger *log.Logger
}

// NewDocumentExtractionService creates an extraction service backed by the
// given OCR client
func NewDocumentExtractionService(ocr OCRClient, logger *log.Logger) *DocumentExtractionService {
	return &DocumentExtractionService{
		ocr:    ocr,
		logger: logger,
	}
}

// Extract returns the document's text. Unsupported kinds are rejected
// before any I/O; all other failures surface as ExtractionError.
func (s *DocumentExtractionService) Extract(ctx context.Context, data []byte, filename string, kind models.DocumentKind, stripMarkup bool) (string, error) {
	if !kind.IsValid() {
		return "", &models.UnsupportedKindError{Kind: kind.String()}
	}

	s.logger.Printf("Extraction: starting for %s (kind=%s, strip_markup=%v)", filename, kind, stripMarkup)

	var text string
	switch kind {
	case models.KindImage, models.KindPDF:
		raw, err := s.ocr.ExtractDocument(ctx, data, filename, kind == models.KindImage)
		if err != nil {
			return "", &models.ExtractionError{Message: "OCR request failed", Err: err}
		}
		text, err = normalizeOCRResponse(raw)
		if err != nil {
			return "", &models.ExtractionError{Message: "unrecognized OCR response", Err: err}
		}

	case models.KindWordDocument:
		var err error
		text, err = parseDocx(data)
		if err != nil {
			return "", &models.ExtractionError{Message: "failed to parse Word document", Err: err}
		}
	}

	if stripMarkup {
		text = StripMarkup(text)
	}

	s.logger.Printf("Extraction: extracted %d characters from %s", len(text), filename)
	return text, nil
}

// OCR response shapes, tried in priority order:
//
//  1. pages: list of objects with markdown or text, joined with blank lines
//  2. text: top-level string
//  3. document.text: nested string
//  4. content: top-level string
type ocrResponse struct {
	Pages []struct {
		Markdown string `json:"markdown"`
		Text     string `json:"text"`
	} `json:"pages"`
	Text     string `json:"text"`
	Document struct {
		Text string `json:"text"`
	} `json:"document"`
	Content string `json:"content"`
}

func normalizeOCRResponse(raw json.RawMessage) (string, error) {
	var resp ocrResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to decode OCR response: %w", err)
	}

	if len(resp.Pages) > 0 {
		parts := make([]string, 0, len(resp.Pages))
		for _, page := range resp.Pages {
			if page.Markdown != "" {
				parts = append(parts, page.Markdown)
			} else if page.Text != "" {
				parts = append(parts, page.Text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n"), nil
		}
	}
	if resp.Text != "" {
		return resp.Text, nil
	}
	if resp.Document.Text != "" {
		return resp.Document.Text, nil
	}
	if resp.Content != "" {
		return resp.Content, nil
	}
	return "", fmt.Errorf("no text found in OCR response")
}

// Minimal OOXML shapes for text extraction. Tags match by local name, so
// the w: namespace prefix is irrelevant.
type docxDocument struct {
	Paragraphs []docxParagraph `xml:"body>p"`
	Tables     []docxTable     `xml:"body>tbl"`
}

type docxParagraph struct {
	Runs []string `xml:"r>t"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paragraphs []docxParagraph `xml:"p"`
}

func (p docxParagraph) text() string {
	return strings.Join(p.Runs, "")
}

// parseDocx extracts the text of a .docx file: paragraphs line by line,
// then tables with cells joined by spaces and rows by newlines
func parseDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a valid docx archive: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", fmt.Errorf("failed to open document.xml: %w", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", fmt.Errorf("failed to read document.xml: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("docx archive has no word/document.xml")
	}

	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return "", fmt.Errorf("failed to parse document.xml: %w", err)
	}

	// Empty paragraphs stay as blank lines so paragraph spacing survives
	var b strings.Builder
	for _, p := range doc.Paragraphs {
		b.WriteString(p.text())
		b.WriteString("\n")
	}
	for _, table := range doc.Tables {
		for _, row := range table.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				parts := make([]string, 0, len(cell.Paragraphs))
				for _, p := range cell.Paragraphs {
					if t := p.text(); t != "" {
						parts = append(parts, t)
					}
				}
				cells = append(cells, strings.Join(parts, " "))
			}
			b.WriteString(strings.Join(cells, " "))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}
