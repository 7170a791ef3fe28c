package services

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"doc-chat/internal/models"
	"doc-chat/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockExtractionService struct {
	mock.Mock
}

func (m *MockExtractionService) Extract(ctx context.Context, data []byte, filename string, kind models.DocumentKind, stripMarkup bool) (string, error) {
	args := m.Called(ctx, data, filename, kind, stripMarkup)
	return args.String(0), args.Error(1)
}

type MockIndexingService struct {
	mock.Mock
}

func (m *MockIndexingService) BuildIndex(ctx context.Context, text string) (*repositories.VectorIndex, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.VectorIndex), args.Error(1)
}

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) Answer(ctx context.Context, sessionID string, index *repositories.VectorIndex, question string, history []models.TurnPair, temperature float64, maxTokens int) (string, []models.Chunk, error) {
	args := m.Called(ctx, sessionID, index, question, history, temperature, maxTokens)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).([]models.Chunk), args.Error(2)
}

func (m *MockQueryService) Retrieve(ctx context.Context, sessionID string, index *repositories.VectorIndex, query string, topK int) ([]models.Chunk, error) {
	args := m.Called(ctx, sessionID, index, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Chunk), args.Error(1)
}

type pipelineFixture struct {
	pipeline   *PipelineService
	extraction *MockExtractionService
	indexing   *MockIndexingService
	query      *MockQueryService
	sessions   *repositories.MemorySessionRepository
	indexes    *repositories.IndexStore
}

func setupPipeline(t *testing.T) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		extraction: &MockExtractionService{},
		indexing:   &MockIndexingService{},
		query:      &MockQueryService{},
		sessions:   repositories.NewMemorySessionRepository(),
		indexes:    repositories.NewIndexStore(),
	}
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	f.pipeline = NewPipelineService(f.extraction, f.indexing, f.query, NewKeywordExtractor(), f.sessions, f.indexes, logger)
	return f
}

func newPipelineIndex(t *testing.T, texts ...string) *repositories.VectorIndex {
	t.Helper()
	chunks := make([]models.Chunk, len(texts))
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{Index: i, Text: text}
		vectors[i] = []float32{1, 0}
	}
	index, err := repositories.NewVectorIndex(chunks, vectors)
	require.NoError(t, err)
	return index
}

func TestCreateSession(t *testing.T) {
	f := setupPipeline(t)

	session, err := f.pipeline.CreateSession(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.StateIdle, session.State)
	assert.False(t, session.IndexReady)
	assert.Equal(t, models.DefaultSettings(), session.Settings)
	assert.Empty(t, session.Transcript)
}

func TestProcessDocument_Success(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	session, err := f.pipeline.CreateSession(ctx)
	require.NoError(t, err)

	text := "The annual report covers revenue growth and market expansion across several regions."
	index := newPipelineIndex(t, "chunk one", "chunk two")

	f.extraction.On("Extract", ctx, mock.Anything, "report.pdf", models.KindPDF, false).Return(text, nil)
	f.indexing.On("BuildIndex", ctx, text).Return(index, nil)

	resp, err := f.pipeline.ProcessDocument(ctx, session.ID, []byte("pdf"), "report.pdf", models.KindPDF, false)

	require.NoError(t, err)
	assert.Equal(t, session.ID, resp.SessionID)
	assert.Equal(t, "ready", resp.State)
	assert.Equal(t, 2, resp.ChunkCount)
	assert.Equal(t, len(text), resp.TextLength)
	assert.GreaterOrEqual(t, resp.ProcessingTimeMs, 0.0)

	updated, err := f.sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateReady, updated.State)
	assert.True(t, updated.IndexReady)
	assert.Equal(t, text, updated.ExtractedText)
	assert.NotEmpty(t, updated.Keywords)
	assert.Same(t, index, f.indexes.Get(session.ID))

	f.extraction.AssertExpectations(t)
	f.indexing.AssertExpectations(t)
}

func TestProcessDocument_UnknownSession(t *testing.T) {
	f := setupPipeline(t)

	_, err := f.pipeline.ProcessDocument(context.Background(), "no-such-session", []byte("pdf"), "a.pdf", models.KindPDF, false)

	require.ErrorIs(t, err, repositories.ErrSessionNotFound)
	f.extraction.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// A failed re-upload must not clobber the previous document: the text, the
// index and chat availability all survive
func TestProcessDocument_ExtractionFailurePreservesPriorDocument(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	session, err := f.pipeline.CreateSession(ctx)
	require.NoError(t, err)

	firstText := "Original document text about shipping routes and port logistics."
	index := newPipelineIndex(t, "chunk")
	f.extraction.On("Extract", ctx, mock.Anything, "first.pdf", models.KindPDF, false).Return(firstText, nil).Once()
	f.indexing.On("BuildIndex", ctx, firstText).Return(index, nil).Once()

	_, err = f.pipeline.ProcessDocument(ctx, session.ID, []byte("pdf"), "first.pdf", models.KindPDF, false)
	require.NoError(t, err)

	f.extraction.On("Extract", ctx, mock.Anything, "second.pdf", models.KindPDF, false).
		Return("", &models.ExtractionError{Message: "OCR request failed", Err: errors.New("timeout")}).Once()

	_, err = f.pipeline.ProcessDocument(ctx, session.ID, []byte("pdf"), "second.pdf", models.KindPDF, false)

	var extractErr *models.ExtractionError
	require.ErrorAs(t, err, &extractErr)

	updated, err := f.sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, updated.State)
	assert.Equal(t, firstText, updated.ExtractedText)
	assert.True(t, updated.IndexReady)
	assert.Same(t, index, f.indexes.Get(session.ID))

	// Chat still works against the surviving index
	f.query.On("Answer", ctx, session.ID, index, "still there?", mock.Anything, 0.2, 2048).
		Return("Yes.", []models.Chunk{}, nil).Once()
	resp, err := f.pipeline.Chat(ctx, session.ID, "still there?")
	require.NoError(t, err)
	assert.Equal(t, "Yes.", resp.Answer)
}

func TestProcessDocument_IndexingFailure(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	session, err := f.pipeline.CreateSession(ctx)
	require.NoError(t, err)

	text := "Document text that extracts fine but fails to index."
	f.extraction.On("Extract", ctx, mock.Anything, "doc.pdf", models.KindPDF, false).Return(text, nil)
	f.indexing.On("BuildIndex", ctx, text).Return(nil, &models.IndexingError{Message: "embedding failed", Err: errors.New("quota")})

	_, err = f.pipeline.ProcessDocument(ctx, session.ID, []byte("pdf"), "doc.pdf", models.KindPDF, false)

	var indexErr *models.IndexingError
	require.ErrorAs(t, err, &indexErr)

	// The new text committed, but there is no usable index
	updated, err := f.sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, updated.State)
	assert.Equal(t, text, updated.ExtractedText)
	assert.False(t, updated.IndexReady)
	assert.Nil(t, f.indexes.Get(session.ID))

	_, err = f.pipeline.Chat(ctx, session.ID, "anything?")
	var notReady *models.NotReadyError
	require.ErrorAs(t, err, &notReady)
}

func TestChat_BeforeDocumentProcessed(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	session, err := f.pipeline.CreateSession(ctx)
	require.NoError(t, err)

	_, err = f.pipeline.Chat(ctx, session.ID, "hello?")

	var notReady *models.NotReadyError
	require.ErrorAs(t, err, &notReady)

	// The rejected question leaves no trace in the transcript
	turns, err := f.sessions.Transcript(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

// A persisted ready flag can outlive the process-local index (a restart with
// the Redis store). Chat must reject cleanly without touching the transcript
// and reset the flag, so the session recovers once the document is reprocessed.
func TestChat_StaleReadyFlagWithoutIndex(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	session, err := f.pipeline.CreateSession(ctx)
	require.NoError(t, err)
	require.NoError(t, f.sessions.SetIndexReady(ctx, session.ID, true))

	_, err = f.pipeline.Chat(ctx, session.ID, "anyone home?")

	var notReady *models.NotReadyError
	require.ErrorAs(t, err, &notReady)

	// No unpaired user turn, and the stale flag is gone
	turns, err := f.sessions.Transcript(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)
	ready, err := f.sessions.IsIndexReady(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, ready)

	// A second attempt is rejected the same way, not by alternation
	_, err = f.pipeline.Chat(ctx, session.ID, "anyone home?")
	require.ErrorAs(t, err, &notReady)

	// Reprocessing restores chat
	index := processTestDocument(t, f, ctx, session.ID)
	f.query.On("Answer", ctx, session.ID, index, "back?", mock.Anything, 0.2, 2048).
		Return("Back.", []models.Chunk{}, nil).Once()
	resp, err := f.pipeline.Chat(ctx, session.ID, "back?")
	require.NoError(t, err)
	assert.Equal(t, "Back.", resp.Answer)
}

// The session view reconciles the same stale flag instead of reporting a
// readiness the process cannot honor
func TestSession_StaleReadyFlagWithoutIndex(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	session, err := f.pipeline.CreateSession(ctx)
	require.NoError(t, err)
	require.NoError(t, f.sessions.SetIndexReady(ctx, session.ID, true))

	view, err := f.pipeline.Session(ctx, session.ID)

	require.NoError(t, err)
	assert.False(t, view.IndexReady)
	ready, err := f.sessions.IsIndexReady(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestChat_EmptyMessage(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	session, err := f.pipeline.CreateSession(ctx)
	require.NoError(t, err)

	_, err = f.pipeline.Chat(ctx, session.ID, "")

	var valErr *models.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func processTestDocument(t *testing.T, f *pipelineFixture, ctx context.Context, sessionID string) *repositories.VectorIndex {
	t.Helper()
	text := "Some document text used across the chat tests."
	index := newPipelineIndex(t, "chunk")
	f.extraction.On("Extract", ctx, mock.Anything, "doc.pdf", models.KindPDF, false).Return(text, nil).Once()
	f.indexing.On("BuildIndex", ctx, text).Return(index, nil).Once()
	_, err := f.pipeline.ProcessDocument(ctx, sessionID, []byte("pdf"), "doc.pdf", models.KindPDF, false)
	require.NoError(t, err)
	return index
}

func TestChat_RecordsTurnsAndPassesHistory(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	session, err := f.pipeline.CreateSession(ctx)
	require.NoError(t, err)
	index := processTestDocument(t, f, ctx, session.ID)

	// First exchange: no prior history
	f.query.On("Answer", ctx, session.ID, index, "first question", []models.TurnPair{}, 0.2, 2048).
		Return("first answer", []models.Chunk{{Index: 0, Text: "chunk"}}, nil).Once()

	resp, err := f.pipeline.Chat(ctx, session.ID, "first question")
	require.NoError(t, err)
	assert.Equal(t, "first answer", resp.Answer)
	assert.Equal(t, "success", resp.Status)
	require.Len(t, resp.Sources, 1)

	// Second exchange sees the completed first pair, not its own question
	expectedHistory := []models.TurnPair{{User: "first question", Assistant: "first answer"}}
	f.query.On("Answer", ctx, session.ID, index, "second question", expectedHistory, 0.2, 2048).
		Return("second answer", []models.Chunk{}, nil).Once()

	_, err = f.pipeline.Chat(ctx, session.ID, "second question")
	require.NoError(t, err)

	turns, err := f.sessions.Transcript(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, models.RoleUser, turns[0].Role)
	assert.Equal(t, "first question", turns[0].Content)
	assert.Equal(t, models.RoleAssistant, turns[1].Role)
	assert.Equal(t, "first answer", turns[1].Content)
	assert.Equal(t, "second question", turns[2].Content)
	assert.Equal(t, "second answer", turns[3].Content)

	f.query.AssertExpectations(t)
}

func TestChat_UsesSessionSettings(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	session, err := f.pipeline.CreateSession(ctx)
	require.NoError(t, err)
	index := processTestDocument(t, f, ctx, session.ID)

	require.NoError(t, f.sessions.SetSetting(ctx, session.ID, models.SettingTemperature, 0.7))
	require.NoError(t, f.sessions.SetSetting(ctx, session.ID, models.SettingMaxTokens, 512))

	f.query.On("Answer", ctx, session.ID, index, "q", mock.Anything, 0.7, 512).
		Return("a", []models.Chunk{}, nil).Once()

	_, err = f.pipeline.Chat(ctx, session.ID, "q")
	require.NoError(t, err)
	f.query.AssertExpectations(t)
}

// Generation failures keep the transcript paired: the question is followed
// by a failure notice from the assistant
func TestChat_GenerationFailureRecordsNotice(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	session, err := f.pipeline.CreateSession(ctx)
	require.NoError(t, err)
	index := processTestDocument(t, f, ctx, session.ID)

	f.query.On("Answer", ctx, session.ID, index, "doomed question", mock.Anything, 0.2, 2048).
		Return("", nil, &models.QueryError{Message: "generation failed", Err: errors.New("overloaded")}).Once()

	_, err = f.pipeline.Chat(ctx, session.ID, "doomed question")

	var queryErr *models.QueryError
	require.ErrorAs(t, err, &queryErr)

	turns, err := f.sessions.Transcript(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "doomed question", turns[0].Content)
	assert.Equal(t, models.RoleAssistant, turns[1].Role)
	assert.Contains(t, turns[1].Content, "Error generating response")

	// The next question still alternates cleanly
	f.query.On("Answer", ctx, session.ID, index, "retry", mock.Anything, 0.2, 2048).
		Return("worked", []models.Chunk{}, nil).Once()
	resp, err := f.pipeline.Chat(ctx, session.ID, "retry")
	require.NoError(t, err)
	assert.Equal(t, "worked", resp.Answer)
}

func TestSearch_NotReady(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	session, err := f.pipeline.CreateSession(ctx)
	require.NoError(t, err)

	_, err = f.pipeline.Search(ctx, session.ID, "query", 5)

	var notReady *models.NotReadyError
	require.ErrorAs(t, err, &notReady)
}

func TestSearch_Delegates(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	session, err := f.pipeline.CreateSession(ctx)
	require.NoError(t, err)
	index := processTestDocument(t, f, ctx, session.ID)

	results := []models.Chunk{{Index: 0, Text: "chunk"}}
	f.query.On("Retrieve", ctx, session.ID, index, "shipping", 3).Return(results, nil).Once()

	resp, err := f.pipeline.Search(ctx, session.ID, "shipping", 3)

	require.NoError(t, err)
	assert.Equal(t, "shipping", resp.Query)
	assert.Equal(t, results, resp.Results)
	assert.Equal(t, 1, resp.Count)
}

func TestUpdateSetting_RejectsInvalid(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	session, err := f.pipeline.CreateSession(ctx)
	require.NoError(t, err)

	_, err = f.pipeline.UpdateSetting(ctx, session.ID, models.SettingTemperature, 1.5)

	var settingErr *models.InvalidSettingError
	require.ErrorAs(t, err, &settingErr)

	// The stored value is untouched
	settings, err := f.pipeline.Settings(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTemperature, settings[models.SettingTemperature])
}
