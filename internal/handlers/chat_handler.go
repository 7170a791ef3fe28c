package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"doc-chat/internal/models"
	"doc-chat/internal/services"

	"github.com/gorilla/mux"
)

// ChatHandler handles HTTP requests for chat and retrieval
type ChatHandler struct {
	pipeline *services.PipelineService
	llm      services.LLMClient
	logger   *log.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(pipeline *services.PipelineService, llm services.LLMClient, logger *log.Logger) *ChatHandler {
	return &ChatHandler{
		pipeline: pipeline,
		llm:      llm,
		logger:   logger,
	}
}

// Chat answers a question about the session's document
// @Summary Chat with the document
// @Description Ask a question about the session's processed document
// @Tags chat
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.ChatRequest true "Question"
// @Success 200 {object} models.ChatResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/sessions/{id}/chat [post]
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.pipeline.Chat(r.Context(), sessionID, req.Message)
	if err != nil {
		h.logger.Printf("Chat failed for session %s: %v", sessionID, err)
		sendError(w, h.logger, statusForError(err), err.Error())
		return
	}

	sendJSON(w, h.logger, http.StatusOK, resp)
}

// Search runs raw retrieval against the session's document index
// @Summary Search the document
// @Description Retrieve the most relevant chunks for a query without generation
// @Tags chat
// @Produce json
// @Param id path string true "Session ID"
// @Param q query string true "Search query"
// @Param top_k query int false "Number of chunks to return" default(5)
// @Success 200 {object} models.SearchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/sessions/{id}/search [get]
func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	query := r.URL.Query().Get("q")
	topK := h.getIntQueryParam(r, "top_k", 5)

	resp, err := h.pipeline.Search(r.Context(), sessionID, query, topK)
	if err != nil {
		sendError(w, h.logger, statusForError(err), err.Error())
		return
	}

	sendJSON(w, h.logger, http.StatusOK, resp)
}

// LLMHealth reports whether the LLM backend is reachable
// @Summary LLM health check
// @Description Check connectivity to the language model backend
// @Tags health
// @Produce json
// @Success 200 {object} models.BasicResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/llm/health [get]
func (h *ChatHandler) LLMHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.llm.HealthCheck(r.Context()); err != nil {
		h.logger.Printf("LLM health check failed: %v", err)
		sendError(w, h.logger, http.StatusBadGateway, err.Error())
		return
	}
	sendJSON(w, h.logger, http.StatusOK, models.BasicResponse{
		Message: "LLM backend is reachable",
		Status:  "success",
	})
}

func (h *ChatHandler) getIntQueryParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}
