package models

// DocumentKind identifies how an uploaded document should be processed
type DocumentKind string

const (
	KindImage        DocumentKind = "image"
	KindPDF          DocumentKind = "pdf"
	KindWordDocument DocumentKind = "word_document"
)

// IsValid checks if the document kind is one the pipeline handles
func (k DocumentKind) IsValid() bool {
	switch k {
	case KindImage, KindPDF, KindWordDocument:
		return true
	default:
		return false
	}
}

// String returns the string representation of the document kind
func (k DocumentKind) String() string {
	return string(k)
}

// PipelineState represents where a session's document pipeline currently is.
// A session moves idle -> extracting -> indexing -> ready; failed is
// reachable from extracting and indexing. Submitting a new document restarts
// the pipeline at extracting from any state.
type PipelineState string

const (
	StateIdle       PipelineState = "idle"
	StateExtracting PipelineState = "extracting"
	StateIndexing   PipelineState = "indexing"
	StateReady      PipelineState = "ready"
	StateFailed     PipelineState = "failed"
)

// IsValid checks if the pipeline state is valid
func (s PipelineState) IsValid() bool {
	switch s {
	case StateIdle, StateExtracting, StateIndexing, StateReady, StateFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the pipeline state
func (s PipelineState) String() string {
	return string(s)
}

// Chunk is a bounded slice of extracted text used as the unit of retrieval.
// Overlap is the number of leading bytes duplicated from the tail of the
// previous chunk; Text[Overlap:] is the chunk's own contribution, so joining
// those portions in index order reconstructs the source text exactly.
type Chunk struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	Overlap int    `json:"overlap,omitempty"`
}
