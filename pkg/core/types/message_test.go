package types

import (
	"encoding/json"
	"testing"
)

func TestNormalizeArgs(t *testing.T) {
	cases := map[string]string{
		"":                 "{}",
		"null":             "{}",
		"  ":               "{}",
		`{"lang":"ar"}`:    `{"lang":"ar"}`,
		` {"a":1} `:        `{"a":1}`,
		`["not","object"]`: `["not","object"]`,
		`{bad`:             "{}",
		`{"path":"/a"`:     "{}",
	}
	for in, want := range cases {
		if got := string(NormalizeArgs(json.RawMessage(in))); got != want {
			t.Fatalf("NormalizeArgs(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestNormalizeArgs_InvalidArgsStillMarshal(t *testing.T) {
	call := ToolCall{ID: "call_1", Name: "navigate", Args: NormalizeArgs(json.RawMessage(`{"path":`))}
	if _, err := json.Marshal(call); err != nil {
		t.Fatalf("marshal: %v", err)
	}
}

func TestAssistantMessage_CopiesCalls(t *testing.T) {
	calls := []ToolCall{{ID: "c1", Name: "navigate", Args: json.RawMessage(`{}`)}}
	msg := AssistantMessage("", calls)
	calls[0].ID = "mutated"
	if msg.ToolCalls[0].ID != "c1" {
		t.Fatalf("tool call id=%q, want c1", msg.ToolCalls[0].ID)
	}
	if msg.Role != RoleAssistant {
		t.Fatalf("role=%q", msg.Role)
	}
}

func TestToolResultMessage(t *testing.T) {
	call := ToolCall{ID: "c9", Name: "highlight"}
	msg := ToolResultMessage(call, json.RawMessage(`{"success":true}`))
	if msg.Role != RoleTool || msg.ToolCallID != "c9" || msg.ToolName != "highlight" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.ResultText() != `{"success":true}` {
		t.Fatalf("result=%s", msg.ResultText())
	}
	if (Message{}).ResultText() != "null" {
		t.Fatalf("empty result should render null")
	}
}
