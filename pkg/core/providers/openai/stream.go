package openai

import (
	"bufio"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/vango-go/vai-navigator/pkg/core/types"
)

// unitStream implements core.UnitStream for Chat Completions SSE responses.
//
// Text deltas are yielded as they arrive. Structured tool calls are accumulated
// by index and yielded, in index order, once the stream finishes.
type unitStream struct {
	reader    *bufio.Reader
	closer    io.Closer
	closeOnce sync.Once
	err       error
	finished  bool
	pending   []types.Unit
	toolCalls map[int]*toolCallAccumulator
}

// toolCallAccumulator accumulates a single streamed tool call.
type toolCallAccumulator struct {
	ID            string
	Name          string
	ArgumentsJSON strings.Builder
}

// chatChunk is the streaming chunk format.
type chatChunk struct {
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Content   string          `json:"content,omitempty"`
			ToolCalls []toolCallDelta `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
}

// toolCallDelta is a tool call fragment; Index ties fragments together.
type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

func newUnitStream(body io.ReadCloser) *unitStream {
	return &unitStream{
		reader:    bufio.NewReader(body),
		closer:    body,
		toolCalls: make(map[int]*toolCallAccumulator),
	}
}

// Next returns the next unit. Returns io.EOF when the stream is complete.
func (s *unitStream) Next() (types.Unit, error) {
	for {
		if len(s.pending) > 0 {
			unit := s.pending[0]
			s.pending = s.pending[1:]
			return unit, nil
		}
		if s.err != nil {
			return types.Unit{}, s.err
		}
		if s.finished {
			return types.Unit{}, io.EOF
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				s.finish()
				continue
			}
			s.err = err
			continue
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.finish()
			continue
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		for _, tc := range choice.Delta.ToolCalls {
			acc, ok := s.toolCalls[tc.Index]
			if !ok {
				acc = &toolCallAccumulator{}
				s.toolCalls[tc.Index] = acc
			}
			if tc.ID != "" {
				acc.ID = tc.ID
			}
			if tc.Function.Name != "" {
				acc.Name = tc.Function.Name
			}
			acc.ArgumentsJSON.WriteString(tc.Function.Arguments)
		}
		if choice.Delta.Content != "" {
			s.pending = append(s.pending, types.TextUnit(choice.Delta.Content))
		}
	}
}

// finish queues accumulated tool calls and marks the stream complete.
func (s *unitStream) finish() {
	if s.finished {
		return
	}
	s.finished = true

	indexes := make([]int, 0, len(s.toolCalls))
	for idx := range s.toolCalls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		acc := s.toolCalls[idx]
		if acc.Name == "" {
			continue
		}
		args := json.RawMessage(acc.ArgumentsJSON.String())
		if !json.Valid(args) {
			args = nil
		}
		s.pending = append(s.pending, types.ToolCallUnit(types.ToolCall{
			ID:   acc.ID,
			Name: acc.Name,
			Args: types.NormalizeArgs(args),
		}))
	}
}

// Close releases resources associated with the stream.
func (s *unitStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.closer.Close()
	})
	return err
}
