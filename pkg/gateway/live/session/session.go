// Package session runs one live voice conversation over a websocket: it
// dispatches client frames, drives turns through the model and speech
// backends, and serializes output through a single writer.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-navigator/pkg/core"
	"github.com/vango-go/vai-navigator/pkg/core/types"
	"github.com/vango-go/vai-navigator/pkg/core/voice/tts"
	"github.com/vango-go/vai-navigator/pkg/gateway/live/entities"
	"github.com/vango-go/vai-navigator/pkg/gateway/live/protocol"
	"github.com/vango-go/vai-navigator/pkg/gateway/profiles"
)

const (
	defaultToolResultTimeout = 5 * time.Second
	defaultMaxPassesPerTurn  = 15
	defaultOutboundQueueSize = 256
	outboundPriorityQueue    = 32
)

var errSessionClosed = errors.New("live session closed")

type Config struct {
	MaxJSONMessageBytes    int64
	PingInterval           time.Duration
	WriteTimeout           time.Duration
	ReadTimeout            time.Duration
	MaxSessionDuration     time.Duration
	ToolResultTimeout      time.Duration
	MaxPassesPerTurn       int
	OutboundQueueSize      int
	InboundFramesPerSecond int
	InboundBytesPerSecond  int64
	InboundBurstSeconds    int
}

type Dependencies struct {
	Conn      *websocket.Conn
	Logger    *slog.Logger
	Model     core.ModelSource
	TTS       tts.Synthesizer
	Profiles  *profiles.Table
	SessionID string
	RequestID string
	Config    Config
	Now       func() time.Time
}

// Session is one live connection. It owns the conversation history, the
// gathered-data bag and the client's page; turn goroutines and the dispatch
// loop share them under mu.
type Session struct {
	conn      *websocket.Conn
	logger    *slog.Logger
	model     core.ModelSource
	tts       tts.Synthesizer
	profiles  *profiles.Table
	sessionID string
	cfg       Config
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	outboundPriority chan outboundFrame
	outboundNormal   chan outboundFrame
	resultNotify     chan struct{}

	mu       sync.Mutex
	history  []types.Message
	data     map[string]string
	page     types.PageContext
	pending  map[string]json.RawMessage
	expected map[string]bool
	turnSeq  int
	current  *turn
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

func New(deps Dependencies) (*Session, error) {
	if deps.Model == nil {
		return nil, fmt.Errorf("model source is required")
	}
	if deps.TTS == nil {
		deps.TTS = tts.Silent{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Config.ToolResultTimeout <= 0 {
		deps.Config.ToolResultTimeout = defaultToolResultTimeout
	}
	if deps.Config.MaxPassesPerTurn <= 0 {
		deps.Config.MaxPassesPerTurn = defaultMaxPassesPerTurn
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = defaultOutboundQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		conn:             deps.Conn,
		logger:           deps.Logger.With("session_id", deps.SessionID, "request_id", deps.RequestID),
		model:            deps.Model,
		tts:              deps.TTS,
		profiles:         deps.Profiles,
		sessionID:        deps.SessionID,
		cfg:              deps.Config,
		now:              deps.Now,
		ctx:              ctx,
		cancel:           cancel,
		outboundPriority: make(chan outboundFrame, outboundPriorityQueue),
		outboundNormal:   make(chan outboundFrame, deps.Config.OutboundQueueSize),
		resultNotify:     make(chan struct{}, 1),
		data:             make(map[string]string),
		pending:          make(map[string]json.RawMessage),
		expected:         make(map[string]bool),
	}, nil
}

// Run serves the connection until the client disconnects, the session is
// cancelled or the maximum session duration elapses. Protocol and turn errors
// are reported to the client and never end the session.
func (s *Session) Run() error {
	if s.conn == nil {
		return fmt.Errorf("connection is required")
	}
	defer func() {
		s.cancel()
		s.wg.Wait()
	}()

	if s.cfg.MaxJSONMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxJSONMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	readCh := make(chan inboundFrame, 64)
	writerErrCh := make(chan error, 1)
	go s.readLoop(readCh)
	go func() {
		w := outboundWriter{
			ws:       s.conn,
			ctx:      s.ctx,
			cfg:      s.cfg,
			priority: s.outboundPriority,
			normal:   s.outboundNormal,
		}
		writerErrCh <- w.Run()
		close(writerErrCh)
	}()

	flushAndClose := func() error {
		s.cancel()
		wait := 100 * time.Millisecond
		if s.cfg.WriteTimeout > 0 && s.cfg.WriteTimeout < wait {
			wait = s.cfg.WriteTimeout
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-writerErrCh:
		case <-timer.C:
		}
		return nil
	}

	if err := s.sendControl(protocol.ServerSessionStarted{Type: protocol.TypeSessionStarted, SessionID: s.sessionID}); err != nil {
		return err
	}
	s.logger.Info("live session started")

	var sessionTimer <-chan time.Time
	if s.cfg.MaxSessionDuration > 0 {
		timer := time.NewTimer(s.cfg.MaxSessionDuration)
		defer timer.Stop()
		sessionTimer = timer.C
	}

	limiter := newInboundLimiter(s.now, s.cfg.InboundFramesPerSecond, s.cfg.InboundBytesPerSecond, s.cfg.InboundBurstSeconds)

	for {
		select {
		case <-s.ctx.Done():
			return flushAndClose()
		case <-sessionTimer:
			s.logger.Info("live session reached max duration")
			_ = s.sendControl(protocol.ServerWarning{Type: protocol.TypeWarning, Code: "session_expired", Message: "maximum session duration reached"})
			return flushAndClose()
		case err := <-writerErrCh:
			return err
		case frame, ok := <-readCh:
			if !ok {
				return nil
			}
			if frame.err != nil {
				if websocket.IsCloseError(frame.err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					s.logger.Info("live session closed by client")
					return nil
				}
				return frame.err
			}
			if !limiter.Allow(len(frame.data)) {
				_ = s.sendError("rate_limited", "too many messages; slow down")
				continue
			}
			if frame.messageType != websocket.TextMessage {
				_ = s.sendError("unsupported", "binary frames are not supported")
				continue
			}
			s.handleMessage(frame.data)
		}
	}
}

// handleMessage decodes and dispatches one client frame.
func (s *Session) handleMessage(data []byte) {
	msg, err := protocol.DecodeClientMessage(data)
	if err != nil {
		code := "bad_request"
		var decErr *protocol.DecodeError
		if errors.As(err, &decErr) {
			code = decErr.Code
		}
		s.logger.Debug("rejected client frame", "code", code, "error", err)
		_ = s.sendError(code, err.Error())
		return
	}

	switch m := msg.(type) {
	case protocol.ClientTranscript:
		text := strings.TrimSpace(m.Text)
		if !m.IsFinal || text == "" {
			return
		}
		s.observeUtterance(text)
		s.startTurn(text)
	case protocol.ClientResume:
		if len(s.History()) == 0 {
			s.logger.Debug("resume ignored: empty history")
			return
		}
		s.startTurn("")
	case protocol.ClientToolResult:
		if !s.deliverToolResult(m.ID, m.Result) {
			s.logger.Debug("ignored tool result", "tool_call_id", m.ID)
		}
	case protocol.ClientPageState:
		s.mu.Lock()
		s.page = types.PageContext{URL: m.URL, Title: strings.TrimSpace(m.Title)}
		s.mu.Unlock()
	case protocol.ClientInterrupt:
		s.interrupt()
	case protocol.ClientPing:
		_ = s.sendControl(protocol.ServerPong{Type: protocol.TypePong})
	}
}

// observeUtterance merges entities found in a final transcript into the
// gathered-data bag.
func (s *Session) observeUtterance(text string) {
	found := entities.Extract(text)
	if len(found) == 0 {
		return
	}
	s.mu.Lock()
	entities.Merge(s.data, found)
	s.mu.Unlock()
	s.logger.Debug("entities extracted", "keys", len(found))
}

func (s *Session) readLoop(out chan<- inboundFrame) {
	defer close(out)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		select {
		case out <- inboundFrame{messageType: messageType, data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

// send queues a frame produced by turn t. It fails once the turn has stopped.
func (s *Session) send(t *turn, v any) error {
	if t.stopped() {
		return errTurnStopped
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case s.outboundNormal <- outboundFrame{payload: payload, turn: t}:
		return nil
	case <-t.ctx.Done():
		return errTurnStopped
	}
}

// sendControl queues a frame that belongs to no turn ahead of turn output.
func (s *Session) sendControl(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case s.outboundPriority <- outboundFrame{payload: payload}:
		return nil
	case <-s.ctx.Done():
		return errSessionClosed
	}
}

func (s *Session) sendError(code, message string) error {
	return s.sendControl(protocol.ServerError{Type: protocol.TypeError, Code: code, Message: message})
}

// ID returns the session id.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.sessionID
}

// Cancel ends the session; Run returns shortly after.
func (s *Session) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
}

// SendWarning queues a warning frame, e.g. a drain notice.
func (s *Session) SendWarning(code, message string) error {
	if s == nil {
		return nil
	}
	return s.sendControl(protocol.ServerWarning{Type: protocol.TypeWarning, Code: code, Message: message})
}
