package session

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/vai-navigator/pkg/core"
	"github.com/vango-go/vai-navigator/pkg/core/types"
	"github.com/vango-go/vai-navigator/pkg/core/voice/tts"
)

// scriptedStream yields units, then either ends or, when hold is set, blocks
// until its context is cancelled and then yields late (if any).
type scriptedStream struct {
	ctx   context.Context
	units []types.Unit
	hold  bool
	late  *types.Unit
	err   error

	mu     sync.Mutex
	idx    int
	closed bool
}

func (s *scriptedStream) Next() (types.Unit, error) {
	s.mu.Lock()
	if s.idx < len(s.units) {
		u := s.units[s.idx]
		s.idx++
		s.mu.Unlock()
		return u, nil
	}
	s.mu.Unlock()

	if s.hold {
		<-s.ctx.Done()
		if s.late != nil {
			late := *s.late
			s.late = nil
			return late, nil
		}
		return types.Unit{}, s.ctx.Err()
	}
	if s.err != nil {
		return types.Unit{}, s.err
	}
	return types.Unit{}, io.EOF
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// fakeModel answers each StreamPass with the next script entry; the last entry
// repeats once the script is exhausted.
type fakeModel struct {
	mu       sync.Mutex
	script   []func(ctx context.Context) (core.UnitStream, error)
	requests []*core.PassRequest
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) StreamPass(ctx context.Context, req *core.PassRequest) (core.UnitStream, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	i := len(m.requests) - 1
	if i >= len(m.script) {
		i = len(m.script) - 1
	}
	fn := m.script[i]
	m.mu.Unlock()
	return fn(ctx)
}

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *fakeModel) request(i int) *core.PassRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

func units(us ...types.Unit) func(ctx context.Context) (core.UnitStream, error) {
	return func(ctx context.Context) (core.UnitStream, error) {
		return &scriptedStream{ctx: ctx, units: us}, nil
	}
}

func toolCall(id, name, args string) types.Unit {
	return types.ToolCallUnit(types.ToolCall{ID: id, Name: name, Args: json.RawMessage(args)})
}

// echoSynth "synthesizes" a span as its own bytes.
type echoSynth struct{}

func (echoSynth) Name() string { return "echo" }

func (echoSynth) SynthesizeStream(ctx context.Context, text string) (*tts.SynthesisStream, error) {
	stream := tts.NewSynthesisStream()
	go func() {
		defer stream.FinishSending()
		stream.Send([]byte(text))
	}()
	return stream, nil
}

// harness runs a Session's writer against an in-memory websocket.
type harness struct {
	s  *Session
	ws *fakeWSWriter
}

func newHarness(t *testing.T, model *fakeModel, synth tts.Synthesizer, cfg Config) *harness {
	t.Helper()
	s, err := New(Dependencies{Model: model, TTS: synth, SessionID: "sess_test", Config: cfg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ws := &fakeWSWriter{}
	w := &outboundWriter{
		ws:       ws,
		ctx:      s.ctx,
		cfg:      Config{PingInterval: time.Hour, WriteTimeout: time.Second},
		priority: s.outboundPriority,
		normal:   s.outboundNormal,
	}
	go func() { _ = w.Run() }()
	t.Cleanup(func() {
		s.Cancel()
		s.wg.Wait()
	})
	return &harness{s: s, ws: ws}
}

type wireMsg struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	ID      string          `json:"id"`
	Tool    string          `json:"tool"`
	Args    json.RawMessage `json:"args"`
	Data    string          `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func (h *harness) messages() []wireMsg {
	var out []wireMsg
	for _, w := range h.ws.snapshot() {
		var m wireMsg
		if err := json.Unmarshal([]byte(w.data), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// waitFor polls the written frames until cond holds.
func (h *harness) waitFor(t *testing.T, what string, cond func([]wireMsg) bool) []wireMsg {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		msgs := h.messages()
		if cond(msgs) {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; frames: %v", what, h.messages())
	return nil
}

func countType(msgs []wireMsg, typ string) int {
	n := 0
	for _, m := range msgs {
		if m.Type == typ {
			n++
		}
	}
	return n
}

func hasType(typ string) func([]wireMsg) bool {
	return func(msgs []wireMsg) bool { return countType(msgs, typ) > 0 }
}

func texts(msgs []wireMsg) string {
	var b strings.Builder
	for _, m := range msgs {
		if m.Type == "text" {
			b.WriteString(m.Content)
		}
	}
	return b.String()
}

func waitTurn(t *testing.T, tr *turn) {
	t.Helper()
	select {
	case <-tr.done:
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not finish")
	}
}
