package gemini

import (
	"encoding/json"
	"io"
	"testing"

	"google.golang.org/genai"

	"github.com/vango-go/vai-navigator/pkg/core"
	"github.com/vango-go/vai-navigator/pkg/core/types"
)

type scriptedResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

func newScriptedStream(items ...scriptedResponse) (*unitStream, *bool) {
	stopped := false
	i := 0
	next := func() (*genai.GenerateContentResponse, error, bool) {
		if i >= len(items) {
			return nil, nil, false
		}
		item := items[i]
		i++
		return item.resp, item.err, true
	}
	return &unitStream{next: next, stop: func() { stopped = true }}, &stopped
}

func response(parts ...*genai.Part) scriptedResponse {
	return scriptedResponse{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}}},
	}}
}

func TestUnitStream_TextFirstThenCalls(t *testing.T) {
	stream, stopped := newScriptedStream(
		response(genai.NewPartFromText("Sure, ")),
		response(
			&genai.Part{FunctionCall: &genai.FunctionCall{Name: "navigate", Args: map[string]any{"path": "/pay"}}, ThoughtSignature: []byte("sig")},
			genai.NewPartFromText("opening it."),
		),
		response(&genai.Part{Text: "hidden reasoning", Thought: true}),
	)

	var units []types.Unit
	for {
		unit, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		units = append(units, unit)
	}
	if len(units) != 3 {
		t.Fatalf("units=%d, want 3: %+v", len(units), units)
	}
	if units[0].Text != "Sure, " || units[1].Text != "opening it." {
		t.Fatalf("unexpected text units: %+v", units[:2])
	}
	call := units[2].ToolCall
	if call == nil || call.Name != "navigate" || string(call.Args) != `{"path":"/pay"}` {
		t.Fatalf("unexpected call: %+v", call)
	}
	if string(call.ThoughtSignature) != "sig" {
		t.Fatalf("thought signature not carried: %q", call.ThoughtSignature)
	}

	_ = stream.Close()
	_ = stream.Close()
	if !*stopped {
		t.Fatalf("Close should stop the iterator")
	}
}

func TestUnitStream_MapsAPIError(t *testing.T) {
	stream, _ := newScriptedStream(scriptedResponse{err: genai.APIError{Code: 503, Message: "overloaded"}})
	_, err := stream.Next()
	coreErr, ok := err.(*core.Error)
	if !ok {
		t.Fatalf("err=%T, want *core.Error", err)
	}
	if coreErr.Type != core.ErrOverloaded {
		t.Fatalf("type=%v", coreErr.Type)
	}
	if _, err := stream.Next(); err != coreErr {
		t.Fatalf("error should be sticky, got %v", err)
	}
}

func TestBuildContents_GroupsToolResults(t *testing.T) {
	calls := []types.ToolCall{
		{ID: "a", Name: "navigate", Args: json.RawMessage(`{"path":"/pay"}`)},
		{ID: "b", Name: "highlight"},
	}
	contents, err := buildContents([]types.Message{
		types.UserMessage("pay my taxes"),
		types.AssistantMessage("", calls),
		types.ToolResultMessage(calls[0], json.RawMessage(`{"success":true}`)),
		types.ToolResultMessage(calls[1], json.RawMessage(`"done"`)),
		types.AssistantMessage("All set.", nil),
	})
	if err != nil {
		t.Fatalf("buildContents: %v", err)
	}
	if len(contents) != 4 {
		t.Fatalf("contents=%d, want 4", len(contents))
	}
	if contents[1].Role != genai.RoleModel || len(contents[1].Parts) != 2 {
		t.Fatalf("unexpected model turn: %+v", contents[1])
	}
	if contents[1].Parts[1].FunctionCall.Args == nil {
		t.Fatalf("empty args should become an empty object")
	}
	toolTurn := contents[2]
	if toolTurn.Role != genai.RoleUser || len(toolTurn.Parts) != 2 {
		t.Fatalf("tool results should share one user turn: %+v", toolTurn)
	}
	if toolTurn.Parts[0].FunctionResponse.Response["success"] != true {
		t.Fatalf("unexpected response: %+v", toolTurn.Parts[0].FunctionResponse.Response)
	}
	if toolTurn.Parts[1].FunctionResponse.Response["output"] != "done" {
		t.Fatalf("non-object result should be wrapped: %+v", toolTurn.Parts[1].FunctionResponse.Response)
	}
}

func TestBuildConfig_DeclaresTools(t *testing.T) {
	config := buildConfig(&core.PassRequest{
		System: "helpful",
		Tools:  []types.ToolSpec{{Name: "navigate", InputSchema: map[string]any{"type": "object"}}},
	}, 256)
	if config.SystemInstruction == nil || config.SystemInstruction.Parts[0].Text != "helpful" {
		t.Fatalf("missing system instruction")
	}
	if len(config.Tools) != 1 || config.Tools[0].FunctionDeclarations[0].Name != "navigate" {
		t.Fatalf("unexpected tools: %+v", config.Tools)
	}
	if config.MaxOutputTokens != 256 {
		t.Fatalf("max tokens=%d", config.MaxOutputTokens)
	}
}
