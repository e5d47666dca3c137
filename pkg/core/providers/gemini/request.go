package gemini

import (
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/vango-go/vai-navigator/pkg/core"
	"github.com/vango-go/vai-navigator/pkg/core/types"
)

// buildContents translates history into Gemini contents.
// Consecutive tool results are grouped into a single user turn.
func buildContents(messages []types.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	var toolTurn *genai.Content

	for _, msg := range messages {
		if msg.Role != types.RoleTool {
			toolTurn = nil
		}
		switch msg.Role {
		case types.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
			})
		case types.RoleAssistant:
			content := &genai.Content{Role: genai.RoleModel}
			if msg.Content != "" {
				content.Parts = append(content.Parts, genai.NewPartFromText(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				args, err := argsMap(call.Args)
				if err != nil {
					return nil, fmt.Errorf("tool call %s args: %w", call.ID, err)
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall:     &genai.FunctionCall{ID: call.ID, Name: call.Name, Args: args},
					ThoughtSignature: call.ThoughtSignature,
				})
			}
			if len(content.Parts) > 0 {
				contents = append(contents, content)
			}
		case types.RoleTool:
			if toolTurn == nil {
				toolTurn = &genai.Content{Role: genai.RoleUser}
				contents = append(contents, toolTurn)
			}
			toolTurn.Parts = append(toolTurn.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     msg.ToolName,
					Response: responseMap(msg.Result),
				},
			})
		}
	}
	return contents, nil
}

func buildConfig(req *core.PassRequest, maxTokens int32) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{MaxOutputTokens: maxTokens}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.System)},
		}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			decl := &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
			}
			if tool.InputSchema != nil {
				decl.ParametersJsonSchema = tool.InputSchema
			}
			decls = append(decls, decl)
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return config
}

func argsMap(raw json.RawMessage) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(types.NormalizeArgs(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// responseMap returns the tool result as a JSON object, wrapping non-object
// values under "output".
func responseMap(raw json.RawMessage) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		return obj
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		value = string(raw)
	}
	return map[string]any{"output": value}
}
