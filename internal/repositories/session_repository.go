package repositories

import (
	"context"
	"errors"

	"doc-chat/internal/models"
)

// ErrSessionNotFound is returned when an operation references a session ID
// that was never initialized
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository defines the lifecycle and mutation rules for per-session
// state: extracted text, index readiness, pipeline state, the chat
// transcript, and settings.
//
// Transcript rules: turns alternate strictly user/assistant starting with a
// user turn; AppendTurn enforces this rather than trusting caller
// sequencing. Setting rules: unknown names and out-of-range values are
// rejected with models.InvalidSettingError.
type SessionRepository interface {
	// Initialize creates a fresh session for the ID if one does not exist.
	// Calling it again for an existing session is a no-op.
	Initialize(ctx context.Context, sessionID string) error

	// Get returns a snapshot of the full session state
	Get(ctx context.Context, sessionID string) (*models.DocumentSession, error)

	// Exists reports whether the session has been initialized
	Exists(ctx context.Context, sessionID string) (bool, error)

	// AppendTurn appends one turn to the transcript, assigning it an ID and
	// timestamp, and returns the stored turn
	AppendTurn(ctx context.Context, sessionID string, role models.TurnRole, content string) (*models.Turn, error)

	// Transcript returns all turns in append order
	Transcript(ctx context.Context, sessionID string) ([]models.Turn, error)

	// PriorPairs returns the completed (user, assistant) exchanges in order.
	// A trailing user turn without an assistant reply is excluded.
	PriorPairs(ctx context.Context, sessionID string) ([]models.TurnPair, error)

	// ClearTranscript empties the transcript. Extracted text, index
	// readiness and settings are unaffected.
	ClearTranscript(ctx context.Context, sessionID string) error

	// SetExtractedText overwrites the session's document text
	SetExtractedText(ctx context.Context, sessionID string, text string) error

	// ExtractedText returns the current document text ("" if none)
	ExtractedText(ctx context.Context, sessionID string) (string, error)

	SetIndexReady(ctx context.Context, sessionID string, ready bool) error
	IsIndexReady(ctx context.Context, sessionID string) (bool, error)

	SetState(ctx context.Context, sessionID string, state models.PipelineState) error
	State(ctx context.Context, sessionID string) (models.PipelineState, error)

	// SetKeywords stores the document-level keywords extracted after a
	// successful text extraction
	SetKeywords(ctx context.Context, sessionID string, keywords []string) error

	// Setting reads one setting, returning def when the name has no stored
	// value
	Setting(ctx context.Context, sessionID string, name string, def any) (any, error)

	// SetSetting validates and stores one setting value
	SetSetting(ctx context.Context, sessionID string, name string, value any) error

	// Settings returns a copy of all current settings
	Settings(ctx context.Context, sessionID string) (map[string]any, error)
}
