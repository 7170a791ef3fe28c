package models

// BasicResponse is the generic message/status envelope used by simple endpoints
type BasicResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ChatRequest represents an incoming chat message for a session
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the assistant's answer and the chunks it was
// grounded in
type ChatResponse struct {
	Answer  string  `json:"answer"`
	Sources []Chunk `json:"sources,omitempty"`
	Status  string  `json:"status"`
}

// SessionView is the API representation of a session's current state.
// The extracted text is truncated to a preview; the full text has its own
// endpoint.
type SessionView struct {
	ID              string         `json:"id"`
	State           string         `json:"state"`
	IndexReady      bool           `json:"index_ready"`
	Keywords        []string       `json:"keywords,omitempty"`
	Settings        map[string]any `json:"settings"`
	TranscriptTurns int            `json:"transcript_turns"`
	TextPreview     string         `json:"text_preview,omitempty"`
	CreatedAt       string         `json:"created_at"`
}

// UploadResponse reports the outcome of a document processing run
type UploadResponse struct {
	SessionID        string  `json:"session_id"`
	Kind             string  `json:"kind"`
	State            string  `json:"state"`
	ChunkCount       int     `json:"chunk_count"`
	TextLength       int     `json:"text_length"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	Message          string  `json:"message,omitempty"`
}

// TranscriptResponse lists a session's turns in order
type TranscriptResponse struct {
	SessionID string `json:"session_id"`
	Turns     []Turn `json:"turns"`
	Count     int    `json:"count"`
}

// SettingUpdateRequest carries one setting value to apply
type SettingUpdateRequest struct {
	Value any `json:"value"`
}

// SearchResponse carries raw retrieval results for a session's index
type SearchResponse struct {
	SessionID string  `json:"session_id"`
	Query     string  `json:"query"`
	Results   []Chunk `json:"results"`
	Count     int     `json:"count"`
}
