package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"doc-chat/internal/models"
	"doc-chat/internal/services"

	"github.com/gorilla/mux"
)

const textPreviewLength = 500

// SessionHandler handles HTTP requests for session lifecycle, transcript
// and settings operations
type SessionHandler struct {
	pipeline *services.PipelineService
	logger   *log.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(pipeline *services.PipelineService, logger *log.Logger) *SessionHandler {
	return &SessionHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// CreateSession creates a new document session
// @Summary Create a session
// @Description Create a new document chat session
// @Tags sessions
// @Produce json
// @Success 201 {object} models.SessionView
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions [post]
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.pipeline.CreateSession(r.Context())
	if err != nil {
		h.logger.Printf("Failed to create session: %v", err)
		sendError(w, h.logger, statusForError(err), err.Error())
		return
	}
	sendJSON(w, h.logger, http.StatusCreated, sessionView(session))
}

// GetSession returns a session's current state
// @Summary Get session state
// @Description Get the current state of a session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionView
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{id} [get]
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := h.pipeline.Session(r.Context(), sessionID)
	if err != nil {
		sendError(w, h.logger, statusForError(err), err.Error())
		return
	}
	sendJSON(w, h.logger, http.StatusOK, sessionView(session))
}

// GetText returns the session's full extracted document text
// @Summary Get extracted text
// @Description Get the full extracted text of the session's document
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{id}/text [get]
func (h *SessionHandler) GetText(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	text, err := h.pipeline.ExtractedText(r.Context(), sessionID)
	if err != nil {
		sendError(w, h.logger, statusForError(err), err.Error())
		return
	}
	sendJSON(w, h.logger, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"text":       text,
	})
}

// GetTranscript returns the session's chat transcript
// @Summary Get transcript
// @Description Get all chat turns for a session in order
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.TranscriptResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{id}/transcript [get]
func (h *SessionHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	turns, err := h.pipeline.Transcript(r.Context(), sessionID)
	if err != nil {
		sendError(w, h.logger, statusForError(err), err.Error())
		return
	}
	sendJSON(w, h.logger, http.StatusOK, models.TranscriptResponse{
		SessionID: sessionID,
		Turns:     turns,
		Count:     len(turns),
	})
}

// ClearTranscript empties the session's chat transcript
// @Summary Clear transcript
// @Description Remove all chat turns, keeping the document and index
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.BasicResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{id}/transcript [delete]
func (h *SessionHandler) ClearTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := h.pipeline.ClearTranscript(r.Context(), sessionID); err != nil {
		sendError(w, h.logger, statusForError(err), err.Error())
		return
	}
	h.logger.Printf("Cleared transcript for session %s", sessionID)
	sendJSON(w, h.logger, http.StatusOK, models.BasicResponse{
		Message: "transcript cleared",
		Status:  "success",
	})
}

// GetSettings returns the session's settings
// @Summary Get settings
// @Description Get all settings for a session
// @Tags settings
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{id}/settings [get]
func (h *SessionHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	settings, err := h.pipeline.Settings(r.Context(), sessionID)
	if err != nil {
		sendError(w, h.logger, statusForError(err), err.Error())
		return
	}
	sendJSON(w, h.logger, http.StatusOK, settings)
}

// UpdateSetting applies one setting value
// @Summary Update a setting
// @Description Validate and apply one session setting
// @Tags settings
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param name path string true "Setting name"
// @Param request body models.SettingUpdateRequest true "New value"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{id}/settings/{name} [put]
func (h *SessionHandler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]
	name := vars["name"]

	var req models.SettingUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings, err := h.pipeline.UpdateSetting(r.Context(), sessionID, name, req.Value)
	if err != nil {
		h.logger.Printf("Setting update rejected for session %s: %v", sessionID, err)
		sendError(w, h.logger, statusForError(err), err.Error())
		return
	}
	sendJSON(w, h.logger, http.StatusOK, settings)
}

func sessionView(session *models.DocumentSession) models.SessionView {
	preview := session.ExtractedText
	if len(preview) > textPreviewLength {
		preview = preview[:textPreviewLength]
	}
	return models.SessionView{
		ID:              session.ID,
		State:           session.State.String(),
		IndexReady:      session.IndexReady,
		Keywords:        session.Keywords,
		Settings:        session.Settings,
		TranscriptTurns: len(session.Transcript),
		TextPreview:     preview,
		CreatedAt:       session.CreatedAt.Format(time.RFC3339),
	}
}
