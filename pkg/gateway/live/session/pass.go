package session

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vango-go/vai-navigator/pkg/core/types"
	"github.com/vango-go/vai-navigator/pkg/core/voice"
	"github.com/vango-go/vai-navigator/pkg/gateway/live/protocol"
	"github.com/vango-go/vai-navigator/pkg/gateway/live/toolscan"
)

// errTurnStopped ends a pass early because its turn was aborted.
var errTurnStopped = errors.New("turn stopped")

// passResult is what one model pass produced.
type passResult struct {
	Text      string
	ToolCalls []types.ToolCall
}

// runPass drives one model response stream. Text goes through the tool-call
// scanner, then to the client and the speaker; tool calls go to the client and
// the result. If the turn is aborted the pass stops and returns what it has,
// without error.
func (s *Session) runPass(t *turn, pass int) (passResult, error) {
	var res passResult
	var text strings.Builder

	stream, err := s.model.StreamPass(t.ctx, s.passRequest())
	if err != nil {
		if t.stopped() {
			return res, nil
		}
		return res, fmt.Errorf("model %s: %w", s.model.Name(), err)
	}
	defer stream.Close()

	scanner := toolscan.New()
	speaker := voice.NewSpeaker(s.tts, voice.SpeakerHooks{
		OnStart: func() error {
			t.spoke.Store(true)
			return s.send(t, protocol.ServerSpeaking{Type: protocol.TypeSpeakingStarted})
		},
		OnAudio: func(chunk []byte) error {
			return s.send(t, protocol.ServerAudioChunk{
				Type: protocol.TypeAudioChunk,
				Data: base64.StdEncoding.EncodeToString(chunk),
			})
		},
	})

	emitCall := func(call types.ToolCall) error {
		if strings.TrimSpace(call.ID) == "" {
			call.ID = toolscan.NextSyntheticID()
		}
		call.Args = types.NormalizeArgs(call.Args)
		s.expectToolResult(call.ID)
		if err := s.send(t, protocol.ServerToolCall{
			Type: protocol.TypeToolCall,
			ID:   call.ID,
			Tool: call.Name,
			Args: call.Args,
		}); err != nil {
			return err
		}
		res.ToolCalls = append(res.ToolCalls, call)
		return nil
	}

	emit := func(tokens []toolscan.Token) error {
		for _, tok := range tokens {
			if t.stopped() {
				return errTurnStopped
			}
			if tok.Call != nil {
				if err := emitCall(*tok.Call); err != nil {
					return err
				}
				continue
			}
			if tok.Text == "" {
				continue
			}
			if err := s.send(t, protocol.ServerText{Type: protocol.TypeText, Content: tok.Text}); err != nil {
				return err
			}
			text.WriteString(tok.Text)
			if err := speaker.Write(t.ctx, tok.Text); err != nil {
				return err
			}
		}
		return nil
	}

	finish := func(err error) (passResult, error) {
		res.Text = text.String()
		if err == nil || t.stopped() {
			return res, nil
		}
		return res, err
	}

	for {
		if t.stopped() {
			return finish(nil)
		}
		unit, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return finish(fmt.Errorf("model stream: %w", err))
		}
		if t.stopped() {
			return finish(nil)
		}

		switch unit.Kind {
		case types.UnitText:
			err = emit(scanner.Feed(unit.Text))
		case types.UnitToolCall:
			if unit.ToolCall != nil {
				// Text the scanner is holding arrived before this call.
				if err = emit(scanner.Flush()); err == nil {
					err = emitCall(*unit.ToolCall)
				}
			}
		}
		if err != nil {
			return finish(err)
		}
	}

	if err := emit(scanner.Flush()); err != nil {
		return finish(err)
	}
	if err := speaker.Flush(t.ctx); err != nil {
		return finish(err)
	}
	s.logger.Debug("pass complete",
		"turn_id", t.id,
		"pass", pass,
		"text_len", text.Len(),
		"tool_calls", len(res.ToolCalls),
		"spoke", speaker.Started(),
	)
	return finish(nil)
}
