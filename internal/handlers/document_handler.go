package handlers

import (
	"io"
	"log"
	"net/http"
	"strconv"

	"doc-chat/internal/models"
	"doc-chat/internal/services"

	"github.com/gorilla/mux"
)

// DocumentHandler handles HTTP requests for document upload and processing
type DocumentHandler struct {
	pipeline *services.PipelineService
	ocr      services.OCRClient
	logger   *log.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(pipeline *services.PipelineService, ocr services.OCRClient, logger *log.Logger) *DocumentHandler {
	return &DocumentHandler{
		pipeline: pipeline,
		ocr:      ocr,
		logger:   logger,
	}
}

// UploadDocument handles document upload and processing requests
// @Summary Upload a document
// @Description Upload a document and run it through extraction and indexing
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Session ID"
// @Param file formData file true "Document file"
// @Param kind formData string true "Document kind (image, pdf, word_document)"
// @Param strip_markup formData bool false "Strip markdown from OCR output" default(false)
// @Success 200 {object} models.UploadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/sessions/{id}/documents [post]
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	h.logger.Printf("Upload request for session %s from %s", sessionID, r.RemoteAddr)

	// Parse multipart form (max 50MB)
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		h.logger.Printf("Failed to parse form: %v", err)
		sendError(w, h.logger, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.logger.Printf("No file uploaded: %v", err)
		sendError(w, h.logger, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	kind := models.DocumentKind(r.FormValue("kind"))
	if kind == "" {
		sendError(w, h.logger, http.StatusBadRequest, "Document kind is required")
		return
	}

	stripMarkup := h.getBoolParam(r, "strip_markup", false)

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Printf("Failed to read upload: %v", err)
		sendError(w, h.logger, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	resp, err := h.pipeline.ProcessDocument(r.Context(), sessionID, data, header.Filename, kind, stripMarkup)
	if err != nil {
		h.logger.Printf("Processing failed for session %s: %v", sessionID, err)
		sendError(w, h.logger, statusForError(err), err.Error())
		return
	}

	sendJSON(w, h.logger, http.StatusOK, resp)
}

// OCRHealth reports whether the OCR backend is reachable
// @Summary OCR health check
// @Description Check connectivity to the OCR backend
// @Tags health
// @Produce json
// @Success 200 {object} models.BasicResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/ocr/health [get]
func (h *DocumentHandler) OCRHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.ocr.HealthCheck(r.Context()); err != nil {
		h.logger.Printf("OCR health check failed: %v", err)
		sendError(w, h.logger, http.StatusBadGateway, err.Error())
		return
	}
	sendJSON(w, h.logger, http.StatusOK, models.BasicResponse{
		Message: "OCR backend is reachable",
		Status:  "success",
	})
}

func (h *DocumentHandler) getBoolParam(r *http.Request, key string, defaultValue bool) bool {
	value := r.FormValue(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}
