package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"doc-chat/internal/models"
	"doc-chat/internal/repositories"

	"github.com/google/uuid"
)

// PipelineService orchestrates the document pipeline for a session: it
// drives extraction and indexing through the state machine and serves chat
// and retrieval against the resulting index.
type PipelineService struct {
	extraction ExtractionService
	indexing   IndexingService
	query      QueryService
	keywords   *KeywordExtractor
	sessions   repositories.SessionRepository
	indexes    *repositories.IndexStore
	logger     *log.Logger
}

// NewPipelineService wires the pipeline from its collaborating services
func NewPipelineService(
	extraction ExtractionService,
	indexing IndexingService,
	query QueryService,
	keywords *KeywordExtractor,
	sessions repositories.SessionRepository,
	indexes *repositories.IndexStore,
	logger *log.Logger,
) *PipelineService {
	return &PipelineService{
		extraction: extraction,
		indexing:   indexing,
		query:      query,
		keywords:   keywords,
		sessions:   sessions,
		indexes:    indexes,
		logger:     logger,
	}
}

// CreateSession initializes a new session and returns its starting state
func (s *PipelineService) CreateSession(ctx context.Context) (*models.DocumentSession, error) {
	sessionID := uuid.New().String()
	if err := s.sessions.Initialize(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	s.logger.Printf("Pipeline: created session %s", sessionID)
	return s.sessions.Get(ctx, sessionID)
}

// Session returns a snapshot of the session's current state
func (s *PipelineService) Session(ctx context.Context, sessionID string) (*models.DocumentSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IndexReady && s.indexes.Get(sessionID) == nil {
		if err := s.sessions.SetIndexReady(ctx, sessionID, false); err != nil {
			return nil, err
		}
		session.IndexReady = false
	}
	return session, nil
}

// ProcessDocument runs the full pipeline for an uploaded document. The
// session's previous text and index survive an extraction failure; once
// extraction succeeds the new text is committed, the old index is dropped
// and readiness stays false until the new index is built.
func (s *PipelineService) ProcessDocument(ctx context.Context, sessionID string, data []byte, filename string, kind models.DocumentKind, stripMarkup bool) (*models.UploadResponse, error) {
	start := time.Now()

	exists, err := s.sessions.Exists(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", repositories.ErrSessionNotFound, sessionID)
	}

	s.logger.Printf("Pipeline: processing document for session %s (kind=%s, %d bytes)", sessionID, kind, len(data))

	if err := s.sessions.SetState(ctx, sessionID, models.StateExtracting); err != nil {
		return nil, err
	}

	// Step 1: extract text. Failure here leaves the previous document
	// fully usable.
	text, err := s.extraction.Extract(ctx, data, filename, kind, stripMarkup)
	if err != nil {
		s.logger.Printf("Pipeline: extraction failed for session %s: %v", sessionID, err)
		s.fail(ctx, sessionID)
		return nil, err
	}

	// Commit point: the new document replaces the old one. The old index
	// is no longer valid for the new text, so it is dropped now.
	if err := s.sessions.SetExtractedText(ctx, sessionID, text); err != nil {
		return nil, err
	}
	if err := s.sessions.SetIndexReady(ctx, sessionID, false); err != nil {
		return nil, err
	}
	s.indexes.Delete(sessionID)

	// Keywords are a best-effort enrichment; a failure never fails the run
	if kws, err := s.keywords.ExtractTopKeywords(text, 10); err != nil {
		s.logger.Printf("Pipeline: keyword extraction failed for session %s: %v", sessionID, err)
	} else if err := s.sessions.SetKeywords(ctx, sessionID, kws); err != nil {
		s.logger.Printf("Pipeline: failed to store keywords for session %s: %v", sessionID, err)
	}

	// Step 2: build the index
	if err := s.sessions.SetState(ctx, sessionID, models.StateIndexing); err != nil {
		return nil, err
	}

	index, err := s.indexing.BuildIndex(ctx, text)
	if err != nil {
		s.logger.Printf("Pipeline: indexing failed for session %s: %v", sessionID, err)
		s.fail(ctx, sessionID)
		return nil, err
	}

	s.indexes.Set(sessionID, index)
	if err := s.sessions.SetIndexReady(ctx, sessionID, true); err != nil {
		return nil, err
	}
	if err := s.sessions.SetState(ctx, sessionID, models.StateReady); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	s.logger.Printf("Pipeline: session %s ready (%d chunks, %d chars, %s)", sessionID, index.Len(), len(text), elapsed)

	return &models.UploadResponse{
		SessionID:        sessionID,
		Kind:             kind.String(),
		State:            models.StateReady.String(),
		ChunkCount:       index.Len(),
		TextLength:       len(text),
		ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000.0,
		Message:          "document processed successfully",
	}, nil
}

// Chat answers a question against the session's document. The question and
// answer are recorded as transcript turns; when generation fails, a failure
// notice becomes the assistant turn so the transcript stays paired.
func (s *PipelineService) Chat(ctx context.Context, sessionID string, message string) (*models.ChatResponse, error) {
	if message == "" {
		return nil, &models.ValidationError{Field: "message", Message: "must not be empty"}
	}

	index, err := s.readyIndex(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// History is captured before the new question is appended so the model
	// sees only completed exchanges
	history, err := s.sessions.PriorPairs(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.AppendTurn(ctx, sessionID, models.RoleUser, message); err != nil {
		return nil, err
	}

	temperature := models.TemperatureValue(s.setting(ctx, sessionID, models.SettingTemperature, models.DefaultTemperature))
	maxTokens := models.MaxTokensValue(s.setting(ctx, sessionID, models.SettingMaxTokens, models.DefaultMaxTokens))

	answer, sources, err := s.query.Answer(ctx, sessionID, index, message, history, temperature, maxTokens)
	if err != nil {
		var queryErr *models.QueryError
		if errors.As(err, &queryErr) {
			notice := fmt.Sprintf("Error generating response: %v", err)
			if _, appendErr := s.sessions.AppendTurn(ctx, sessionID, models.RoleAssistant, notice); appendErr != nil {
				s.logger.Printf("Pipeline: failed to record failure notice for session %s: %v", sessionID, appendErr)
			}
		}
		return nil, err
	}

	if _, err := s.sessions.AppendTurn(ctx, sessionID, models.RoleAssistant, answer); err != nil {
		return nil, err
	}

	return &models.ChatResponse{
		Answer:  answer,
		Sources: sources,
		Status:  "success",
	}, nil
}

// Search runs raw retrieval against the session's index without generation
func (s *PipelineService) Search(ctx context.Context, sessionID string, query string, topK int) (*models.SearchResponse, error) {
	if query == "" {
		return nil, &models.ValidationError{Field: "q", Message: "must not be empty"}
	}

	index, err := s.readyIndex(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.query.Retrieve(ctx, sessionID, index, query, topK)
	if err != nil {
		return nil, err
	}

	return &models.SearchResponse{
		SessionID: sessionID,
		Query:     query,
		Results:   chunks,
		Count:     len(chunks),
	}, nil
}

// Transcript returns the session's turns in order
func (s *PipelineService) Transcript(ctx context.Context, sessionID string) ([]models.Turn, error) {
	return s.sessions.Transcript(ctx, sessionID)
}

// ClearTranscript empties the session's transcript, leaving the document
// and index in place
func (s *PipelineService) ClearTranscript(ctx context.Context, sessionID string) error {
	return s.sessions.ClearTranscript(ctx, sessionID)
}

// ExtractedText returns the session's full document text
func (s *PipelineService) ExtractedText(ctx context.Context, sessionID string) (string, error) {
	return s.sessions.ExtractedText(ctx, sessionID)
}

// Settings returns the session's current settings
func (s *PipelineService) Settings(ctx context.Context, sessionID string) (map[string]any, error) {
	return s.sessions.Settings(ctx, sessionID)
}

// UpdateSetting validates and applies one setting, returning the updated map
func (s *PipelineService) UpdateSetting(ctx context.Context, sessionID string, name string, value any) (map[string]any, error) {
	if err := s.sessions.SetSetting(ctx, sessionID, name, value); err != nil {
		return nil, err
	}
	return s.sessions.Settings(ctx, sessionID)
}

// readyIndex returns the session's index once both the ready flag and the
// process-local index agree. A persisted session can report ready=true after
// a restart even though indexes only live in memory; that stale flag is reset
// here so the session reads as not ready until its document is reprocessed.
func (s *PipelineService) readyIndex(ctx context.Context, sessionID string) (*repositories.VectorIndex, error) {
	ready, err := s.sessions.IsIndexReady(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	index := s.indexes.Get(sessionID)
	if ready && index == nil {
		s.logger.Printf("Pipeline: session %s reports ready without an index, resetting readiness", sessionID)
		if err := s.sessions.SetIndexReady(ctx, sessionID, false); err != nil {
			return nil, err
		}
		ready = false
	}
	if !ready {
		return nil, &models.NotReadyError{SessionID: sessionID}
	}
	return index, nil
}

// fail marks the pipeline run failed, logging rather than masking the
// original failure when the state write itself errors
func (s *PipelineService) fail(ctx context.Context, sessionID string) {
	if err := s.sessions.SetState(ctx, sessionID, models.StateFailed); err != nil {
		s.logger.Printf("Pipeline: failed to record failed state for session %s: %v", sessionID, err)
	}
}

func (s *PipelineService) setting(ctx context.Context, sessionID, name string, def any) any {
	value, err := s.sessions.Setting(ctx, sessionID, name, def)
	if err != nil {
		return def
	}
	return value
}
