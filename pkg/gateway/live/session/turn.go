package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-go/vai-navigator/pkg/core"
	"github.com/vango-go/vai-navigator/pkg/core/types"
	"github.com/vango-go/vai-navigator/pkg/gateway/live/protocol"
)

var (
	timeoutResult     = json.RawMessage(`{"success":false,"error":"Timeout waiting for tool result"}`)
	interruptedResult = json.RawMessage(`{"success":false,"error":"Turn interrupted"}`)
)

// turn is one user-utterance-to-response cycle. It is aborted when a newer
// turn starts or the client interrupts; every checkpoint in the pass runner
// observes that and stops producing output.
type turn struct {
	id int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	aborted atomic.Bool
	spoke   atomic.Bool

	// gate orders abort against frame writes: once abort returns, the writer
	// cannot emit another frame for this turn.
	gate sync.RWMutex
}

func newTurn(parent context.Context, id int) *turn {
	ctx, cancel := context.WithCancel(parent)
	return &turn{id: id, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (t *turn) abort() {
	if t == nil {
		return
	}
	t.gate.Lock()
	t.aborted.Store(true)
	t.gate.Unlock()
	t.cancel()
}

// stopped reports whether the turn must stop producing output.
func (t *turn) stopped() bool {
	return t.aborted.Load() || t.ctx.Err() != nil
}

// whileLive runs fn unless the turn has been aborted; frames of an aborted
// turn are dropped silently.
func (t *turn) whileLive(fn func() error) error {
	t.gate.RLock()
	defer t.gate.RUnlock()
	if t.aborted.Load() {
		return nil
	}
	return fn()
}

// startTurn makes a new current turn and aborts the previous one. userText is
// empty for a resume. The new turn runs on its own goroutine but does not
// touch history until the previous turn has finished.
func (s *Session) startTurn(userText string) *turn {
	s.mu.Lock()
	prev := s.current
	s.turnSeq++
	t := newTurn(s.ctx, s.turnSeq)
	s.current = t
	s.mu.Unlock()

	prev.abort()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(t.done)
		defer t.cancel()

		if prev != nil {
			select {
			case <-prev.done:
			case <-s.ctx.Done():
				return
			}
		}
		if userText != "" {
			s.appendHistory(types.UserMessage(userText))
		}
		if t.stopped() {
			return
		}
		s.runTurn(t)
	}()
	return t
}

// interrupt aborts the current turn and tells the client speech has ended.
func (s *Session) interrupt() {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	current.abort()
	_ = s.sendControl(protocol.ServerSpeaking{Type: protocol.TypeSpeakingEnded})
}

// runTurn is the multi-pass loop: run a pass, and while it yields tool calls,
// wait for their results and run another, up to MaxPassesPerTurn.
func (s *Session) runTurn(t *turn) {
	logger := s.logger.With("turn_id", t.id)

	for pass := 1; pass <= s.cfg.MaxPassesPerTurn; pass++ {
		res, err := s.runPass(t, pass)
		if err != nil {
			s.resetToolResults()
			if t.stopped() {
				return
			}
			logger.Warn("turn failed", "pass", pass, "error", err)
			_ = s.send(t, protocol.ServerError{Type: protocol.TypeError, Code: "turn_failed", Message: clientErrorMessage(err)})
			if t.spoke.Load() {
				_ = s.send(t, protocol.ServerSpeaking{Type: protocol.TypeSpeakingEnded})
			}
			return
		}

		if len(res.ToolCalls) == 0 {
			if strings.TrimSpace(res.Text) != "" {
				s.appendHistory(types.AssistantMessage(res.Text, nil))
			}
			if !t.stopped() {
				_ = s.send(t, protocol.ServerSpeaking{Type: protocol.TypeSpeakingEnded})
			}
			return
		}

		s.appendHistory(types.AssistantMessage(res.Text, res.ToolCalls))
		results := s.awaitToolResults(t, res.ToolCalls)
		for i, call := range res.ToolCalls {
			s.appendHistory(types.ToolResultMessage(call, results[i]))
		}
		if t.stopped() {
			return
		}
		logger.Debug("tool calls resolved", "pass", pass, "count", len(res.ToolCalls))
	}

	logger.Info("pass limit reached", "max_passes", s.cfg.MaxPassesPerTurn)
	_ = s.send(t, protocol.ServerSpeaking{Type: protocol.TypeSpeakingEnded})
}

// expectToolResult registers a call id whose result the client should send.
func (s *Session) expectToolResult(id string) {
	s.mu.Lock()
	s.expected[id] = true
	s.mu.Unlock()
}

// deliverToolResult records a client tool result and wakes the waiting turn.
// Results for ids the session is not waiting on are ignored.
func (s *Session) deliverToolResult(id string, result json.RawMessage) bool {
	s.mu.Lock()
	if !s.expected[id] {
		s.mu.Unlock()
		return false
	}
	s.pending[id] = result
	s.mu.Unlock()

	select {
	case s.resultNotify <- struct{}{}:
	default:
	}
	return true
}

// awaitToolResults blocks until every call has a result, the tool-result
// timeout elapses or the turn stops. Missing results are synthesized. The
// pending set is cleared before returning.
func (s *Session) awaitToolResults(t *turn, calls []types.ToolCall) []json.RawMessage {
	timer := time.NewTimer(s.cfg.ToolResultTimeout)
	defer timer.Stop()

	missing := timeoutResult
wait:
	for !s.haveResults(calls) {
		select {
		case <-s.resultNotify:
		case <-timer.C:
			break wait
		case <-t.ctx.Done():
			missing = interruptedResult
			break wait
		}
	}

	s.mu.Lock()
	out := make([]json.RawMessage, len(calls))
	for i, call := range calls {
		if r, ok := s.pending[call.ID]; ok {
			out[i] = r
			continue
		}
		out[i] = missing
	}
	s.mu.Unlock()

	s.resetToolResults()
	return out
}

// resetToolResults forgets the pass's expected ids and pending results.
func (s *Session) resetToolResults() {
	s.mu.Lock()
	s.pending = make(map[string]json.RawMessage)
	s.expected = make(map[string]bool)
	s.mu.Unlock()
}

func (s *Session) haveResults(calls []types.ToolCall) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, call := range calls {
		if _, ok := s.pending[call.ID]; !ok {
			return false
		}
	}
	return true
}

// clientErrorMessage is the text shown to the client for a failed turn.
func clientErrorMessage(err error) string {
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr.IsRetryable() {
		return "The assistant is busy right now. Please try again."
	}
	return "Sorry, something went wrong while answering."
}
