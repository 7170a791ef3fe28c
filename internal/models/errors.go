package models

import "fmt"

// UnsupportedKindError indicates a document kind the extraction gateway
// does not handle. This is a caller contract violation and is raised
// before any I/O happens.
type UnsupportedKindError struct {
	Kind string
}

func (e *UnsupportedKindError) Error() string {
	return "unsupported document kind: " + e.Kind
}

// ExtractionError indicates the text extraction step failed, either in the
// OCR service or in local document parsing. The failure is terminal for the
// current pipeline run; prior session state is left untouched.
type ExtractionError struct {
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return "extraction failed: " + e.Message + ": " + e.Err.Error()
	}
	return "extraction failed: " + e.Message
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IndexingError indicates chunking or embedding failed while building the
// document index.
type IndexingError struct {
	Message string
	Err     error
}

func (e *IndexingError) Error() string {
	if e.Err != nil {
		return "indexing failed: " + e.Message + ": " + e.Err.Error()
	}
	return "indexing failed: " + e.Message
}

func (e *IndexingError) Unwrap() error {
	return e.Err
}

// NotReadyError indicates a query was attempted before a document index was
// built for the session. Callers should prevent this, but the pipeline
// checks defensively.
type NotReadyError struct {
	SessionID string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("no document index ready for session %s: process a document first", e.SessionID)
}

// QueryError indicates retrieval or generation failed while answering a
// question. The failed question is still recorded as a user turn; a failure
// notice becomes the assistant turn.
type QueryError struct {
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return "query failed: " + e.Message + ": " + e.Err.Error()
	}
	return "query failed: " + e.Message
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// InvalidSettingError indicates an unknown setting name or an out-of-range
// setting value. Invalid values are rejected, never clamped.
type InvalidSettingError struct {
	Name    string
	Message string
}

func (e *InvalidSettingError) Error() string {
	return fmt.Sprintf("invalid setting %q: %s", e.Name, e.Message)
}

// ValidationError represents a field-level validation failure
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}
