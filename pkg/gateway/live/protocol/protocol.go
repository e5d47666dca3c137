// Package protocol defines the JSON frames exchanged with a voice client.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaxTranscriptRunes bounds a single transcript frame.
const MaxTranscriptRunes = 8000

// Outbound message types.
const (
	TypeText            = "text"
	TypeToolCall        = "tool_call"
	TypeAudioChunk      = "audio_chunk"
	TypeSpeakingStarted = "speaking_started"
	TypeSpeakingEnded   = "speaking_ended"
	TypeError           = "error"
	TypeWarning         = "warning"
	TypePong            = "pong"
	TypeSessionStarted  = "session_started"
)

// DecodeError reports a client frame that could not be decoded or failed
// validation. The connection stays open.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// fromValidation turns an ozzo validation failure into a DecodeError naming
// the first offending field.
func fromValidation(typ string, err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return badRequest(fmt.Sprintf("invalid %s: %v", typ, err), "")
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := keys[0]
	return badRequest(fmt.Sprintf("%s.%s %v", typ, key, fields[key]), key)
}

// ClientTranscript carries a user utterance. Only final transcripts start a turn.
type ClientTranscript struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// Validate checks the transcript bounds.
func (m ClientTranscript) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Text, validation.RuneLength(0, MaxTranscriptRunes)),
	)
}

// ClientToolResult is the client's outcome for a previously issued tool call.
type ClientToolResult struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Validate requires a tool call id.
func (m ClientToolResult) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.ID, validation.Required, validation.Length(1, 256)),
	)
}

// ClientPageState updates the session's notion of the client page.
type ClientPageState struct {
	Type  string `json:"type"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Validate requires a URL.
func (m ClientPageState) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.URL, validation.Required, validation.Length(1, 2048)),
		validation.Field(&m.Title, validation.Length(0, 512)),
	)
}

// ClientInterrupt cancels the active turn.
type ClientInterrupt struct {
	Type string `json:"type"`
}

// ClientResume starts a turn on the existing history without a new utterance.
type ClientResume struct {
	Type string `json:"type"`
}

// ClientPing asks for a pong.
type ClientPing struct {
	Type string `json:"type"`
}

// DecodeClientMessage decodes one inbound text frame into a Client* value.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "transcript":
		var msg ClientTranscript
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid transcript frame", "")
		}
		if err := fromValidation(typ, msg.Validate()); err != nil {
			return nil, err
		}
		return msg, nil
	case "tool_result":
		var msg ClientToolResult
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid tool_result frame", "")
		}
		msg.ID = strings.TrimSpace(msg.ID)
		if err := fromValidation(typ, msg.Validate()); err != nil {
			return nil, err
		}
		if len(msg.Result) == 0 {
			msg.Result = json.RawMessage("null")
		}
		return msg, nil
	case "page_state":
		var msg ClientPageState
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid page_state frame", "")
		}
		msg.URL = strings.TrimSpace(msg.URL)
		if err := fromValidation(typ, msg.Validate()); err != nil {
			return nil, err
		}
		return msg, nil
	case "interrupt":
		return ClientInterrupt{Type: typ}, nil
	case "resume":
		return ClientResume{Type: typ}, nil
	case "ping":
		return ClientPing{Type: typ}, nil
	default:
		return nil, unsupported("unsupported message type", "type")
	}
}

// ServerText is a speakable, displayable text fragment.
type ServerText struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ServerToolCall instructs the client to perform a UI action.
type ServerToolCall struct {
	Type string          `json:"type"`
	ID   string          `json:"id"`
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// ServerAudioChunk carries synthesized speech, base64 encoded.
type ServerAudioChunk struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ServerSpeaking brackets audio activity (speaking_started / speaking_ended).
type ServerSpeaking struct {
	Type string `json:"type"`
}

// ServerError reports a failed turn or a rejected frame.
type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type ServerWarning struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ServerPong struct {
	Type string `json:"type"`
}

type ServerSessionStarted struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}
