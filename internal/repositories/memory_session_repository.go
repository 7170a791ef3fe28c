package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"doc-chat/internal/models"

	"github.com/google/uuid"
)

// MemorySessionRepository is the default SessionRepository: plain in-process
// maps guarded by a RWMutex. Session state lives exactly as long as the
// process, which matches the session lifecycle (no persisted format).
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.DocumentSession
}

// NewMemorySessionRepository creates an empty in-memory session store
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*models.DocumentSession),
	}
}

// Initialize creates a fresh session if one does not already exist
func (r *MemorySessionRepository) Initialize(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sessionID]; exists {
		return nil
	}

	now := time.Now()
	r.sessions[sessionID] = &models.DocumentSession{
		ID:         sessionID,
		State:      models.StateIdle,
		IndexReady: false,
		Transcript: []models.Turn{},
		Settings:   models.DefaultSettings(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return nil
}

// Get returns a deep-enough copy of the session so callers cannot mutate
// stored state behind the lock
func (r *MemorySessionRepository) Get(ctx context.Context, sessionID string) (*models.DocumentSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.get(sessionID)
	if err != nil {
		return nil, err
	}
	return copySession(s), nil
}

// Exists reports whether the session has been initialized
func (r *MemorySessionRepository) Exists(ctx context.Context, sessionID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sessions[sessionID]
	return exists, nil
}

// AppendTurn appends one turn, enforcing strict user/assistant alternation
// starting with a user turn
func (r *MemorySessionRepository) AppendTurn(ctx context.Context, sessionID string, role models.TurnRole, content string) (*models.Turn, error) {
	if !role.IsValid() {
		return nil, &models.ValidationError{Field: "role", Message: "must be user or assistant"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.get(sessionID)
	if err != nil {
		return nil, err
	}

	if err := checkAlternation(s.Transcript, role); err != nil {
		return nil, err
	}

	turn := models.Turn{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	s.Transcript = append(s.Transcript, turn)
	s.UpdatedAt = turn.CreatedAt
	return &turn, nil
}

// Transcript returns all turns in append order
func (r *MemorySessionRepository) Transcript(ctx context.Context, sessionID string) ([]models.Turn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.get(sessionID)
	if err != nil {
		return nil, err
	}
	turns := make([]models.Turn, len(s.Transcript))
	copy(turns, s.Transcript)
	return turns, nil
}

// PriorPairs derives the completed (user, assistant) exchanges from the
// transcript, scanning consecutive turns two at a time
func (r *MemorySessionRepository) PriorPairs(ctx context.Context, sessionID string) ([]models.TurnPair, error) {
	turns, err := r.Transcript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return derivePairs(turns), nil
}

// ClearTranscript empties the transcript only
func (r *MemorySessionRepository) ClearTranscript(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.get(sessionID)
	if err != nil {
		return err
	}
	s.Transcript = []models.Turn{}
	s.UpdatedAt = time.Now()
	return nil
}

// SetExtractedText overwrites the session's document text
func (r *MemorySessionRepository) SetExtractedText(ctx context.Context, sessionID string, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.get(sessionID)
	if err != nil {
		return err
	}
	s.ExtractedText = text
	s.UpdatedAt = time.Now()
	return nil
}

// ExtractedText returns the current document text
func (r *MemorySessionRepository) ExtractedText(ctx context.Context, sessionID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.get(sessionID)
	if err != nil {
		return "", err
	}
	return s.ExtractedText, nil
}

// SetIndexReady flips the index readiness flag
func (r *MemorySessionRepository) SetIndexReady(ctx context.Context, sessionID string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.get(sessionID)
	if err != nil {
		return err
	}
	s.IndexReady = ready
	s.UpdatedAt = time.Now()
	return nil
}

// IsIndexReady reports whether a document index is available for querying
func (r *MemorySessionRepository) IsIndexReady(ctx context.Context, sessionID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.get(sessionID)
	if err != nil {
		return false, err
	}
	return s.IndexReady, nil
}

// SetState records the session's pipeline state
func (r *MemorySessionRepository) SetState(ctx context.Context, sessionID string, state models.PipelineState) error {
	if !state.IsValid() {
		return &models.ValidationError{Field: "state", Message: "invalid pipeline state: " + state.String()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.get(sessionID)
	if err != nil {
		return err
	}
	s.State = state
	s.UpdatedAt = time.Now()
	return nil
}

// State returns the session's pipeline state
func (r *MemorySessionRepository) State(ctx context.Context, sessionID string) (models.PipelineState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.get(sessionID)
	if err != nil {
		return "", err
	}
	return s.State, nil
}

// SetKeywords stores document-level keywords
func (r *MemorySessionRepository) SetKeywords(ctx context.Context, sessionID string, keywords []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.get(sessionID)
	if err != nil {
		return err
	}
	s.Keywords = append([]string(nil), keywords...)
	s.UpdatedAt = time.Now()
	return nil
}

// Setting reads one setting with a fallback default
func (r *MemorySessionRepository) Setting(ctx context.Context, sessionID string, name string, def any) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.get(sessionID)
	if err != nil {
		return nil, err
	}
	if v, ok := s.Settings[name]; ok {
		return v, nil
	}
	return def, nil
}

// SetSetting validates and stores one setting value
func (r *MemorySessionRepository) SetSetting(ctx context.Context, sessionID string, name string, value any) error {
	normalized, err := models.NormalizeSetting(name, value)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.get(sessionID)
	if err != nil {
		return err
	}
	s.Settings[name] = normalized
	s.UpdatedAt = time.Now()
	return nil
}

// Settings returns a copy of the session's settings map
func (r *MemorySessionRepository) Settings(ctx context.Context, sessionID string) (map[string]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.get(sessionID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(s.Settings))
	for k, v := range s.Settings {
		out[k] = v
	}
	return out, nil
}

// get must be called with the lock held
func (r *MemorySessionRepository) get(sessionID string) (*models.DocumentSession, error) {
	s, exists := r.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

func copySession(s *models.DocumentSession) *models.DocumentSession {
	out := *s
	out.Transcript = make([]models.Turn, len(s.Transcript))
	copy(out.Transcript, s.Transcript)
	out.Keywords = append([]string(nil), s.Keywords...)
	out.Settings = make(map[string]any, len(s.Settings))
	for k, v := range s.Settings {
		out.Settings[k] = v
	}
	return &out
}

// checkAlternation enforces the transcript ordering invariant: the first
// turn is a user turn and roles strictly alternate afterwards
func checkAlternation(transcript []models.Turn, next models.TurnRole) error {
	if len(transcript) == 0 {
		if next != models.RoleUser {
			return &models.ValidationError{Field: "role", Message: "transcript must start with a user turn"}
		}
		return nil
	}
	last := transcript[len(transcript)-1].Role
	if last == next {
		return &models.ValidationError{Field: "role", Message: fmt.Sprintf("consecutive %s turns are not allowed", next)}
	}
	return nil
}

// derivePairs walks the transcript two turns at a time and keeps only
// completed user/assistant exchanges
func derivePairs(turns []models.Turn) []models.TurnPair {
	pairs := make([]models.TurnPair, 0, len(turns)/2)
	for i := 0; i+1 < len(turns); i += 2 {
		if turns[i].Role == models.RoleUser && turns[i+1].Role == models.RoleAssistant {
			pairs = append(pairs, models.TurnPair{
				User:      turns[i].Content,
				Assistant: turns[i+1].Content,
			})
		}
	}
	return pairs
}
