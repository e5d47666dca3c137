// Package toolscan recovers tool calls that a model wrote into its text
// output as JSON instead of using the structured tool-call channel.
//
// The Scanner is a streaming filter: text flows through unchanged except for
// JSON spans that describe tool invocations, which are removed from the text
// and reported as calls. Output is independent of how the input is chunked.
package toolscan

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/vango-go/vai-navigator/pkg/core/types"
)

// MaxCandidateChars bounds how many characters the scanner looks through for
// the end of a JSON candidate before giving up on it.
const MaxCandidateChars = 4096

var syntheticSeq atomic.Int64

// NextSyntheticID returns a process-unique id for a recovered call.
func NextSyntheticID() string {
	return fmt.Sprintf("synthetic_call_%d", syntheticSeq.Add(1))
}

// Token is one element of the scanner's output: either pass-through text or
// a recovered call.
type Token struct {
	Text string
	Call *types.ToolCall
}

// Scanner is not safe for concurrent use. Use one per agent pass.
type Scanner struct {
	buf string
	out []Token
}

// New returns an empty Scanner.
func New() *Scanner {
	return &Scanner{}
}

// Feed appends chunk and returns the tokens that can be decided so far, in
// stream order. Undecided input stays buffered.
func (s *Scanner) Feed(chunk string) []Token {
	s.buf += chunk
	s.process(false)
	return s.take()
}

// Flush decides everything still buffered. Call it once at end of stream.
func (s *Scanner) Flush() []Token {
	s.process(true)
	if s.buf != "" {
		s.emitText(s.buf)
		s.buf = ""
	}
	return s.take()
}

// Buffered reports how many bytes are held back awaiting more input.
func (s *Scanner) Buffered() int {
	return len(s.buf)
}

func (s *Scanner) take() []Token {
	out := s.out
	s.out = nil
	return out
}

func (s *Scanner) emitText(text string) {
	if text == "" {
		return
	}
	if n := len(s.out); n > 0 && s.out[n-1].Call == nil {
		s.out[n-1].Text += text
		return
	}
	s.out = append(s.out, Token{Text: text})
}

func (s *Scanner) emitCall(call types.ToolCall) {
	s.out = append(s.out, Token{Call: &call})
}

func (s *Scanner) process(final bool) {
	for s.buf != "" {
		start := strings.IndexAny(s.buf, "[{")
		if start < 0 {
			n := len(s.buf)
			if !final {
				n = completeUTF8Prefix(s.buf)
			}
			s.emitText(s.buf[:n])
			s.buf = s.buf[n:]
			return
		}
		if start > 0 {
			s.emitText(s.buf[:start])
			s.buf = s.buf[start:]
		}

		end, state := matchCandidate(s.buf)
		switch state {
		case candidateOpen:
			if !final {
				return
			}
			s.skipOne()
		case candidateTooLong:
			s.skipOne()
		case candidateClosed:
			span := s.buf[:end]
			calls, valid := parseCandidate(span)
			if !valid {
				s.skipOne()
				continue
			}
			if calls == nil {
				s.emitText(span)
			}
			for _, call := range calls {
				s.emitCall(call)
			}
			s.buf = s.buf[end:]
		}
	}
}

// skipOne emits the candidate's opening bracket as text and rescans after it.
func (s *Scanner) skipOne() {
	s.emitText(s.buf[:1])
	s.buf = s.buf[1:]
}

type candidateState int

const (
	candidateOpen candidateState = iota
	candidateClosed
	candidateTooLong
)

// matchCandidate finds the end of the bracketed span starting at buf[0].
// Brackets inside string literals are ignored.
func matchCandidate(buf string) (int, candidateState) {
	depth := 0
	chars := 0
	inString := false
	escaped := false
	for i := 0; i < len(buf); i++ {
		c := buf[i]
		if utf8.RuneStart(c) {
			chars++
			if chars > MaxCandidateChars {
				return 0, candidateTooLong
			}
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i + 1, candidateClosed
			}
		}
	}
	return 0, candidateOpen
}

// completeUTF8Prefix returns the length of the longest prefix of s that does
// not end in a truncated multi-byte sequence.
func completeUTF8Prefix(s string) int {
	n := len(s)
	for back := 1; back <= utf8.UTFMax && back <= n; back++ {
		c := s[n-back]
		if c < utf8.RuneSelf {
			return n
		}
		if utf8.RuneStart(c) {
			if utf8.FullRuneInString(s[n-back:]) {
				return n
			}
			return n - back
		}
	}
	return n
}

// parseCandidate reports whether span is valid JSON. When it is, calls holds the
// recovered invocations, or nil if the JSON is not a recognized call shape.
func parseCandidate(span string) ([]types.ToolCall, bool) {
	raw := json.RawMessage(span)
	if !json.Valid(raw) {
		return nil, false
	}

	switch span[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, true
		}
		if _, ok := obj["recipient_name"]; ok {
			call, ok := parseCallObject(obj)
			if !ok {
				return nil, true
			}
			return []types.ToolCall{call}, true
		}
		if uses, ok := obj["tool_uses"]; ok {
			return parseCallArray(uses), true
		}
		return nil, true
	case '[':
		return parseCallArray(raw), true
	}
	return nil, true
}

func parseCallArray(raw json.RawMessage) []types.ToolCall {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil
	}
	calls := make([]types.ToolCall, 0, len(items))
	for _, item := range items {
		call, ok := parseCallObject(item)
		if !ok {
			return nil
		}
		calls = append(calls, call)
	}
	return calls
}

func parseCallObject(obj map[string]json.RawMessage) (types.ToolCall, bool) {
	var recipient string
	if err := json.Unmarshal(obj["recipient_name"], &recipient); err != nil {
		return types.ToolCall{}, false
	}
	name := toolName(recipient)
	if name == "" {
		return types.ToolCall{}, false
	}

	params, ok := obj["parameters"]
	if !ok {
		return types.ToolCall{}, false
	}
	trimmed := strings.TrimSpace(string(params))
	if trimmed != "" && trimmed != "null" && !strings.HasPrefix(trimmed, "{") {
		return types.ToolCall{}, false
	}

	return types.ToolCall{
		ID:        NextSyntheticID(),
		Name:      name,
		Args:      types.NormalizeArgs(params),
		Synthetic: true,
	}, true
}

// toolName strips any namespace prefix: "functions.setLanguage" -> "setLanguage".
func toolName(recipient string) string {
	recipient = strings.TrimSpace(recipient)
	if i := strings.LastIndex(recipient, "."); i >= 0 {
		recipient = recipient[i+1:]
	}
	return recipient
}
