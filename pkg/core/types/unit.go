package types

// UnitKind identifies the payload of a streamed Unit.
type UnitKind string

const (
	UnitText     UnitKind = "text"
	UnitToolCall UnitKind = "tool_call"
)

// Unit is one element of a model's streamed response: a text fragment or a
// complete structured tool call.
type Unit struct {
	Kind     UnitKind
	Text     string
	ToolCall *ToolCall
}

// TextUnit wraps a text fragment.
func TextUnit(text string) Unit {
	return Unit{Kind: UnitText, Text: text}
}

// ToolCallUnit wraps a structured tool call.
func ToolCallUnit(call ToolCall) Unit {
	return Unit{Kind: UnitToolCall, ToolCall: &call}
}

// PageContext is the last known state of the user's browser page.
type PageContext struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}
