package types

import (
	"bytes"
	"encoding/json"
)

// ToolSpec describes a client-side tool the agent may invoke.
type ToolSpec struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty" yaml:"input_schema"`
}

// ToolCall is a request from the agent to invoke a client-side tool.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`

	// Synthetic marks calls recovered from free text rather than emitted
	// through the model's structured tool-call channel.
	Synthetic bool `json:"-"`

	// ThoughtSignature is an opaque backend token that must be echoed back
	// with the call in later passes (Gemini).
	ThoughtSignature []byte `json:"-"`
}

var emptyArgs = json.RawMessage(`{}`)

// NormalizeArgs returns args, or an empty object when args are missing, null
// or not valid JSON.
func NormalizeArgs(args json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || !json.Valid(trimmed) {
		return append(json.RawMessage(nil), emptyArgs...)
	}
	return append(json.RawMessage(nil), trimmed...)
}
