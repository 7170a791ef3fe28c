package models

import (
	"fmt"
	"time"
)

// TurnRole identifies the author of a transcript turn
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// IsValid checks if the turn role is valid
func (r TurnRole) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message in a session's chat transcript
type Turn struct {
	ID        string    `json:"id"`
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnPair is one completed exchange: a user message and the assistant
// reply that immediately followed it. Pairs are what the query engine
// receives as conversational context.
type TurnPair struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// DocumentSession holds everything the pipeline tracks for one user
// session: the extracted document text, index readiness, the chat
// transcript, and adjustable settings. Sessions live for the process
// lifetime and are never shared between users.
type DocumentSession struct {
	ID            string         `json:"id"`
	State         PipelineState  `json:"state"`
	ExtractedText string         `json:"extracted_text,omitempty"`
	IndexReady    bool           `json:"index_ready"`
	Keywords      []string       `json:"keywords,omitempty"`
	Transcript    []Turn         `json:"transcript"`
	Settings      map[string]any `json:"settings"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Recognized setting names and their defaults. Unknown names are rejected.
const (
	SettingLayout      = "layout"
	SettingTemperature = "temperature"
	SettingMaxTokens   = "max_tokens"

	LayoutSideBySide = "side-by-side"
	LayoutStacked    = "stacked"

	DefaultTemperature = 0.2
	DefaultMaxTokens   = 2048
	MinMaxTokens       = 256
	MaxMaxTokens       = 4096
)

// DefaultSettings returns a fresh settings map with every recognized
// setting at its default value
func DefaultSettings() map[string]any {
	return map[string]any{
		SettingLayout:      LayoutSideBySide,
		SettingTemperature: DefaultTemperature,
		SettingMaxTokens:   DefaultMaxTokens,
	}
}

// NormalizeSetting validates a setting value against the recognized name
// and range rules and returns it in its canonical type (string for layout,
// float64 for temperature, int for max_tokens). JSON-decoded numbers arrive
// as float64, so numeric values are coerced before range checking.
// Out-of-range values and unknown names are rejected with
// InvalidSettingError.
func NormalizeSetting(name string, value any) (any, error) {
	switch name {
	case SettingLayout:
		s, ok := value.(string)
		if !ok {
			return nil, &InvalidSettingError{Name: name, Message: "must be a string"}
		}
		if s != LayoutSideBySide && s != LayoutStacked {
			return nil, &InvalidSettingError{Name: name, Message: fmt.Sprintf("must be %q or %q", LayoutSideBySide, LayoutStacked)}
		}
		return s, nil

	case SettingTemperature:
		f, ok := toFloat(value)
		if !ok {
			return nil, &InvalidSettingError{Name: name, Message: "must be a number"}
		}
		if f < 0.0 || f > 1.0 {
			return nil, &InvalidSettingError{Name: name, Message: "must be between 0.0 and 1.0"}
		}
		return f, nil

	case SettingMaxTokens:
		f, ok := toFloat(value)
		if !ok || f != float64(int(f)) {
			return nil, &InvalidSettingError{Name: name, Message: "must be an integer"}
		}
		n := int(f)
		if n < MinMaxTokens || n > MaxMaxTokens {
			return nil, &InvalidSettingError{Name: name, Message: fmt.Sprintf("must be between %d and %d", MinMaxTokens, MaxMaxTokens)}
		}
		return n, nil

	default:
		return nil, &InvalidSettingError{Name: name, Message: "unknown setting"}
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// TemperatureValue reads a normalized temperature setting, falling back to
// the default when the stored value has an unexpected type
func TemperatureValue(v any) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	return DefaultTemperature
}

// MaxTokensValue reads a normalized max_tokens setting, falling back to the
// default when the stored value has an unexpected type
func MaxTokensValue(v any) int {
	if f, ok := toFloat(v); ok {
		return int(f)
	}
	return DefaultMaxTokens
}
