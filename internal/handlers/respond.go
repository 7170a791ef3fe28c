package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"doc-chat/internal/models"
	"doc-chat/internal/repositories"
)

// ErrorResponse is the JSON error envelope for all API failures
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func sendJSON(w http.ResponseWriter, logger *log.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Printf("Failed to encode JSON: %v", err)
	}
}

func sendError(w http.ResponseWriter, logger *log.Logger, status int, message string) {
	sendJSON(w, logger, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}

// statusForError maps pipeline errors to HTTP status codes: caller mistakes
// are 4xx, upstream service failures are 502
func statusForError(err error) int {
	var (
		unsupportedKind *models.UnsupportedKindError
		invalidSetting  *models.InvalidSettingError
		validation      *models.ValidationError
		notReady        *models.NotReadyError
		extraction      *models.ExtractionError
		indexing        *models.IndexingError
		query           *models.QueryError
	)

	switch {
	case errors.As(err, &unsupportedKind), errors.As(err, &invalidSetting), errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, repositories.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.As(err, &notReady):
		return http.StatusConflict
	case errors.As(err, &extraction), errors.As(err, &indexing), errors.As(err, &query):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
