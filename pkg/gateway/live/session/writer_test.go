package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recordedWrite struct {
	messageType int
	data        string
}

type fakeWSWriter struct {
	mu     sync.Mutex
	writes []recordedWrite
}

func (f *fakeWSWriter) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeWSWriter) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, recordedWrite{messageType: messageType, data: string(data)})
	return nil
}

func (f *fakeWSWriter) WriteControl(messageType int, data []byte, deadline time.Time) error {
	_ = deadline
	return f.WriteMessage(messageType, data)
}

func (f *fakeWSWriter) Close() error { return nil }

// snapshot returns the text frames written so far.
func (f *fakeWSWriter) snapshot() []recordedWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedWrite, 0, len(f.writes))
	for _, w := range f.writes {
		if w.messageType == websocket.TextMessage {
			out = append(out, w)
		}
	}
	return out
}

func runWriter(t *testing.T, ctx context.Context, priority, normal chan outboundFrame) *fakeWSWriter {
	t.Helper()
	ws := &fakeWSWriter{}
	w := outboundWriter{
		ws:       ws,
		ctx:      ctx,
		cfg:      Config{PingInterval: time.Hour, WriteTimeout: time.Second},
		priority: priority,
		normal:   normal,
	}
	if err := w.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return ws
}

func TestOutboundWriter_PriorityBeatsNormal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	priority := make(chan outboundFrame, 1)
	normal := make(chan outboundFrame, 1)
	normal <- outboundFrame{payload: []byte(`{"type":"text","content":"hi"}`)}
	priority <- outboundFrame{payload: []byte(`{"type":"speaking_ended"}`)}
	close(priority)
	close(normal)

	writes := runWriter(t, ctx, priority, normal).snapshot()
	if len(writes) != 2 {
		t.Fatalf("writes=%+v", writes)
	}
	if !strings.Contains(writes[0].data, `"speaking_ended"`) {
		t.Fatalf("first write was not the priority frame: %q", writes[0].data)
	}
}

func TestOutboundWriter_DropsFramesOfAbortedTurn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	old := newTurn(ctx, 1)
	current := newTurn(ctx, 2)
	old.abort()

	priority := make(chan outboundFrame, 1)
	normal := make(chan outboundFrame, 8)
	normal <- outboundFrame{payload: []byte(`{"type":"text","content":"stale"}`), turn: old}
	normal <- outboundFrame{payload: []byte(`{"type":"audio_chunk","data":"AAAA"}`), turn: old}
	normal <- outboundFrame{payload: []byte(`{"type":"text","content":"fresh"}`), turn: current}
	normal <- outboundFrame{payload: []byte(`{"type":"pong"}`)}
	close(priority)
	close(normal)

	writes := runWriter(t, ctx, priority, normal).snapshot()
	if len(writes) != 2 {
		t.Fatalf("expected 2 writes, got %+v", writes)
	}
	if !strings.Contains(writes[0].data, "fresh") || !strings.Contains(writes[1].data, "pong") {
		t.Fatalf("writes=%+v", writes)
	}
}

func TestOutboundWriter_FlushesPriorityOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	priority := make(chan outboundFrame, 1)
	normal := make(chan outboundFrame, 1)
	priority <- outboundFrame{payload: []byte(`{"type":"warning","code":"draining","message":"bye"}`)}
	close(priority)
	close(normal)

	cancel()
	writes := runWriter(t, ctx, priority, normal).snapshot()
	if len(writes) == 0 || !strings.Contains(writes[0].data, `"type":"warning"`) {
		t.Fatalf("expected warning to flush on shutdown, writes=%+v", writes)
	}
}

func TestTurn_AbortWaitsForInFlightWrite(t *testing.T) {
	tr := newTurn(context.Background(), 1)
	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = tr.whileLive(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	aborted := make(chan struct{})
	go func() {
		tr.abort()
		close(aborted)
	}()
	select {
	case <-aborted:
		t.Fatal("abort returned while a write was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-aborted

	wrote := false
	_ = tr.whileLive(func() error { wrote = true; return nil })
	if wrote {
		t.Fatal("write ran after abort")
	}
}
