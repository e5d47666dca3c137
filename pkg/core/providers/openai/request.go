package openai

import (
	"encoding/json"

	"github.com/vango-go/vai-navigator/pkg/core"
	"github.com/vango-go/vai-navigator/pkg/core/types"
)

// chatRequest is the Chat Completions request format.
type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	MaxTokens     *int           `json:"max_completion_tokens,omitempty"`
	Tools         []chatTool     `json:"tools,omitempty"`
	Stream        bool           `json:"stream"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

// chatMessage is a single message in OpenAI format.
// Content is a pointer so assistant messages carrying only tool calls send null.
type chatMessage struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// chatTool is a tool definition in OpenAI format.
type chatTool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function toolCallFunc `json:"function"`
}

type toolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// buildRequest converts a pass request to a streaming chat request.
func (p *Provider) buildRequest(req *core.PassRequest) *chatRequest {
	maxTokens := p.maxTokens
	out := &chatRequest{
		Model:         p.model,
		MaxTokens:     &maxTokens,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}
	out.Messages = translateMessages(req.System, req.Messages)
	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, translateTool(tool))
	}
	return out
}

func translateMessages(system string, messages []types.Message) []chatMessage {
	result := make([]chatMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, chatMessage{Role: types.RoleSystem, Content: strPtr(system)})
	}

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleTool:
			result = append(result, chatMessage{
				Role:       types.RoleTool,
				ToolCallID: msg.ToolCallID,
				Content:    strPtr(msg.ResultText()),
			})
		case types.RoleAssistant:
			out := chatMessage{Role: types.RoleAssistant}
			if msg.Content != "" || len(msg.ToolCalls) == 0 {
				out.Content = strPtr(msg.Content)
			}
			for _, call := range msg.ToolCalls {
				out.ToolCalls = append(out.ToolCalls, toolCall{
					ID:   call.ID,
					Type: "function",
					Function: toolCallFunc{
						Name:      call.Name,
						Arguments: string(types.NormalizeArgs(call.Args)),
					},
				})
			}
			result = append(result, out)
		default:
			result = append(result, chatMessage{Role: msg.Role, Content: strPtr(msg.Content)})
		}
	}
	return result
}

func translateTool(tool types.ToolSpec) chatTool {
	schema := tool.InputSchema
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	params, err := json.Marshal(schema)
	if err != nil {
		params = json.RawMessage(`{"type":"object"}`)
	}
	return chatTool{
		Type: "function",
		Function: toolFunction{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  params,
		},
	}
}

func strPtr(s string) *string {
	return &s
}
