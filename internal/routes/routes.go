package routes

import (
	"net/http"

	"doc-chat/internal/handlers"

	"github.com/gorilla/mux"
)

// Handlers groups everything the router needs
type Handlers struct {
	Health          http.HandlerFunc
	SessionHandler  *handlers.SessionHandler
	DocumentHandler *handlers.DocumentHandler
	ChatHandler     *handlers.ChatHandler
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(router *mux.Router, h *Handlers) {
	// Health endpoints
	router.HandleFunc("/health", h.Health).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/llm/health", h.ChatHandler.LLMHealth).Methods("GET")
	api.HandleFunc("/ocr/health", h.DocumentHandler.OCRHealth).Methods("GET")

	// Session lifecycle
	api.HandleFunc("/sessions", h.SessionHandler.CreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", h.SessionHandler.GetSession).Methods("GET")

	// Document pipeline
	api.HandleFunc("/sessions/{id}/documents", h.DocumentHandler.UploadDocument).Methods("POST")
	api.HandleFunc("/sessions/{id}/text", h.SessionHandler.GetText).Methods("GET")

	// Chat and retrieval
	api.HandleFunc("/sessions/{id}/chat", h.ChatHandler.Chat).Methods("POST")
	api.HandleFunc("/sessions/{id}/search", h.ChatHandler.Search).Methods("GET")
	api.HandleFunc("/sessions/{id}/transcript", h.SessionHandler.GetTranscript).Methods("GET")
	api.HandleFunc("/sessions/{id}/transcript", h.SessionHandler.ClearTranscript).Methods("DELETE")

	// Settings
	api.HandleFunc("/sessions/{id}/settings", h.SessionHandler.GetSettings).Methods("GET")
	api.HandleFunc("/sessions/{id}/settings/{name}", h.SessionHandler.UpdateSetting).Methods("PUT")
}
