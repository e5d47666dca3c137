package types

import "encoding/json"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a session's conversation history.
//
// Assistant messages may carry tool calls; their Content may then be empty.
// Tool messages answer exactly one earlier call and carry its id, name and result.
type Message struct {
	Role       string          `json:"role"`
	Content    string          `json:"content,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// UserMessage builds a user history entry.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage builds an assistant history entry.
func AssistantMessage(text string, calls []ToolCall) Message {
	msg := Message{Role: RoleAssistant, Content: text}
	if len(calls) > 0 {
		msg.ToolCalls = append([]ToolCall(nil), calls...)
	}
	return msg
}

// ToolResultMessage builds the tool history entry answering call.
func ToolResultMessage(call ToolCall, result json.RawMessage) Message {
	return Message{
		Role:       RoleTool,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Result:     append(json.RawMessage(nil), result...),
	}
}

// ResultText returns the tool result as a string suitable for a model's tool message.
func (m Message) ResultText() string {
	if len(m.Result) == 0 {
		return "null"
	}
	return string(m.Result)
}
