package gemini

import (
	"encoding/json"
	"io"
	"sync"

	"google.golang.org/genai"

	"github.com/vango-go/vai-navigator/pkg/core/types"
)

// unitStream adapts the SDK's response iterator to core.UnitStream.
//
// Text parts are yielded as they arrive. Function calls arrive complete and are
// held until the response finishes so they follow all text of the pass.
type unitStream struct {
	next     func() (*genai.GenerateContentResponse, error, bool)
	stop     func()
	stopOnce sync.Once
	pending  []types.Unit
	calls    []types.Unit
	err      error
	finished bool
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

		resp, err, ok := s.next()
		if !ok {
			s.finished = true
			s.pending = append(s.pending, s.calls...)
			s.calls = nil
			continue
		}
		if err != nil {
			s.err = mapError(err)
			continue
		}
		s.consume(resp)
	}
}

func (s *unitStream) consume(resp *genai.GenerateContentResponse) {
	if resp == nil || len(resp.Candidates) == 0 {
		return
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return
	}
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				args = nil
			}
			s.calls = append(s.calls, types.ToolCallUnit(types.ToolCall{
				ID:               part.FunctionCall.ID,
				Name:             part.FunctionCall.Name,
				Args:             types.NormalizeArgs(args),
				ThoughtSignature: part.ThoughtSignature,
			}))
			continue
		}
		if part.Text != "" {
			s.pending = append(s.pending, types.TextUnit(part.Text))
		}
	}
}

// Close stops the underlying iterator.
func (s *unitStream) Close() error {
	s.stopOnce.Do(s.stop)
	return nil
}
