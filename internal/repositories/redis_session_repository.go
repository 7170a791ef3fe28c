package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"doc-chat/internal/db"
	"doc-chat/internal/models"

	"github.com/google/uuid"
)

// RedisSessionRepository persists session state in Redis so sessions survive
// process restarts. Each session uses two keys: a hash for scalar state and
// a list for the transcript.
//
//	session:{id}            hash  state, text, ready, keywords, settings, created_at, updated_at
//	session:{id}:transcript list  JSON-encoded turns in append order
//
// Vector indexes are process-local and are never written to Redis, so a
// persisted ready flag can outlive the index it described. The pipeline
// reconciles that on read: a session whose index is gone has its flag reset
// and stays not ready until the document is reprocessed.
type RedisSessionRepository struct {
	client *db.RedisClient
}

// NewRedisSessionRepository creates a Redis-backed session store
func NewRedisSessionRepository(client *db.RedisClient) *RedisSessionRepository {
	return &RedisSessionRepository{client: client}
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

func transcriptKey(sessionID string) string {
	return sessionKey(sessionID) + ":transcript"
}

// Initialize creates the session hash if it does not already exist
func (r *RedisSessionRepository) Initialize(ctx context.Context, sessionID string) error {
	n, err := r.client.Exists(ctx, sessionKey(sessionID))
	if err != nil {
		return fmt.Errorf("failed to check session existence: %w", err)
	}
	if n > 0 {
		return nil
	}

	settings, err := json.Marshal(models.DefaultSettings())
	if err != nil {
		return fmt.Errorf("failed to encode default settings: %w", err)
	}

	now := time.Now().Format(time.RFC3339Nano)
	err = r.client.HSet(ctx, sessionKey(sessionID),
		"state", models.StateIdle.String(),
		"text", "",
		"ready", "0",
		"keywords", "[]",
		"settings", string(settings),
		"created_at", now,
		"updated_at", now,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get returns a snapshot of the full session state
func (r *RedisSessionRepository) Get(ctx context.Context, sessionID string) (*models.DocumentSession, error) {
	fields, err := r.fields(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	transcript, err := r.Transcript(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session := &models.DocumentSession{
		ID:            sessionID,
		State:         models.PipelineState(fields["state"]),
		ExtractedText: fields["text"],
		IndexReady:    fields["ready"] == "1",
		Transcript:    transcript,
	}

	if raw := fields["keywords"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &session.Keywords); err != nil {
			return nil, fmt.Errorf("failed to decode session keywords: %w", err)
		}
	}
	session.Settings, err = decodeSettings(fields["settings"])
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		session.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		session.UpdatedAt = t
	}
	return session, nil
}

// Exists reports whether the session has been initialized
func (r *RedisSessionRepository) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, sessionKey(sessionID))
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return n > 0, nil
}

// AppendTurn appends one turn, enforcing strict user/assistant alternation
// starting with a user turn
func (r *RedisSessionRepository) AppendTurn(ctx context.Context, sessionID string, role models.TurnRole, content string) (*models.Turn, error) {
	if !role.IsValid() {
		return nil, &models.ValidationError{Field: "role", Message: "must be user or assistant"}
	}
	if err := r.ensure(ctx, sessionID); err != nil {
		return nil, err
	}

	raw, found, err := r.client.LIndex(ctx, transcriptKey(sessionID), -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read last turn: %w", err)
	}
	if !found {
		if role != models.RoleUser {
			return nil, &models.ValidationError{Field: "role", Message: "transcript must start with a user turn"}
		}
	} else {
		var last models.Turn
		if err := json.Unmarshal([]byte(raw), &last); err != nil {
			return nil, fmt.Errorf("failed to decode last turn: %w", err)
		}
		if last.Role == role {
			return nil, &models.ValidationError{Field: "role", Message: fmt.Sprintf("consecutive %s turns are not allowed", role)}
		}
	}

	turn := models.Turn{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	encoded, err := json.Marshal(turn)
	if err != nil {
		return nil, fmt.Errorf("failed to encode turn: %w", err)
	}
	if err := r.client.RPush(ctx, transcriptKey(sessionID), string(encoded)); err != nil {
		return nil, fmt.Errorf("failed to append turn: %w", err)
	}
	if err := r.touch(ctx, sessionID); err != nil {
		return nil, err
	}
	return &turn, nil
}

// Transcript returns all turns in append order
func (r *RedisSessionRepository) Transcript(ctx context.Context, sessionID string) ([]models.Turn, error) {
	if err := r.ensure(ctx, sessionID); err != nil {
		return nil, err
	}

	raw, err := r.client.LRange(ctx, transcriptKey(sessionID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	turns := make([]models.Turn, 0, len(raw))
	for _, item := range raw {
		var turn models.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("failed to decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// PriorPairs derives the completed (user, assistant) exchanges from the
// transcript
func (r *RedisSessionRepository) PriorPairs(ctx context.Context, sessionID string) ([]models.TurnPair, error) {
	turns, err := r.Transcript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return derivePairs(turns), nil
}

// ClearTranscript empties the transcript only
func (r *RedisSessionRepository) ClearTranscript(ctx context.Context, sessionID string) error {
	if err := r.ensure(ctx, sessionID); err != nil {
		return err
	}
	if err := r.client.Del(ctx, transcriptKey(sessionID)); err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}
	return r.touch(ctx, sessionID)
}

// SetExtractedText overwrites the session's document text
func (r *RedisSessionRepository) SetExtractedText(ctx context.Context, sessionID string, text string) error {
	return r.setField(ctx, sessionID, "text", text)
}

// ExtractedText returns the current document text
func (r *RedisSessionRepository) ExtractedText(ctx context.Context, sessionID string) (string, error) {
	fields, err := r.fields(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return fields["text"], nil
}

// SetIndexReady flips the index readiness flag
func (r *RedisSessionRepository) SetIndexReady(ctx context.Context, sessionID string, ready bool) error {
	value := "0"
	if ready {
		value = "1"
	}
	return r.setField(ctx, sessionID, "ready", value)
}

// IsIndexReady reports whether a document index is available for querying
func (r *RedisSessionRepository) IsIndexReady(ctx context.Context, sessionID string) (bool, error) {
	fields, err := r.fields(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return fields["ready"] == "1", nil
}

// SetState records the session's pipeline state
func (r *RedisSessionRepository) SetState(ctx context.Context, sessionID string, state models.PipelineState) error {
	if !state.IsValid() {
		return &models.ValidationError{Field: "state", Message: "invalid pipeline state: " + state.String()}
	}
	return r.setField(ctx, sessionID, "state", state.String())
}

// State returns the session's pipeline state
func (r *RedisSessionRepository) State(ctx context.Context, sessionID string) (models.PipelineState, error) {
	fields, err := r.fields(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return models.PipelineState(fields["state"]), nil
}

// SetKeywords stores document-level keywords
func (r *RedisSessionRepository) SetKeywords(ctx context.Context, sessionID string, keywords []string) error {
	if keywords == nil {
		keywords = []string{}
	}
	encoded, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	return r.setField(ctx, sessionID, "keywords", string(encoded))
}

// Setting reads one setting with a fallback default
func (r *RedisSessionRepository) Setting(ctx context.Context, sessionID string, name string, def any) (any, error) {
	settings, err := r.Settings(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if v, ok := settings[name]; ok {
		return v, nil
	}
	return def, nil
}

// SetSetting validates and stores one setting value
func (r *RedisSessionRepository) SetSetting(ctx context.Context, sessionID string, name string, value any) error {
	normalized, err := models.NormalizeSetting(name, value)
	if err != nil {
		return err
	}

	settings, err := r.Settings(ctx, sessionID)
	if err != nil {
		return err
	}
	settings[name] = normalized

	encoded, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return r.setField(ctx, sessionID, "settings", string(encoded))
}

// Settings returns the session's settings map with canonical value types
func (r *RedisSessionRepository) Settings(ctx context.Context, sessionID string) (map[string]any, error) {
	fields, err := r.fields(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return decodeSettings(fields["settings"])
}

// ensure verifies the session hash exists before touching derived keys
func (r *RedisSessionRepository) ensure(ctx context.Context, sessionID string) error {
	n, err := r.client.Exists(ctx, sessionKey(sessionID))
	if err != nil {
		return fmt.Errorf("failed to check session existence: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

func (r *RedisSessionRepository) fields(ctx context.Context, sessionID string) (map[string]string, error) {
	fields, err := r.client.HGetAll(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return fields, nil
}

func (r *RedisSessionRepository) setField(ctx context.Context, sessionID, field, value string) error {
	if err := r.ensure(ctx, sessionID); err != nil {
		return err
	}
	err := r.client.HSet(ctx, sessionKey(sessionID),
		field, value,
		"updated_at", time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", field, err)
	}
	return nil
}

func (r *RedisSessionRepository) touch(ctx context.Context, sessionID string) error {
	err := r.client.HSet(ctx, sessionKey(sessionID), "updated_at", time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// decodeSettings restores canonical value types after the JSON round trip.
// Numbers decode as float64, so every known setting is re-normalized.
func decodeSettings(raw string) (map[string]any, error) {
	if raw == "" {
		return models.DefaultSettings(), nil
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	settings := make(map[string]any, len(decoded))
	for name, value := range decoded {
		normalized, err := models.NormalizeSetting(name, value)
		if err != nil {
			// Unknown or stale values are dropped rather than breaking reads
			continue
		}
		settings[name] = normalized
	}
	return settings, nil
}
