package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-navigator/pkg/core"
	"github.com/vango-go/vai-navigator/pkg/core/voice/tts"
	"github.com/vango-go/vai-navigator/pkg/gateway/apierror"
	"github.com/vango-go/vai-navigator/pkg/gateway/config"
	"github.com/vango-go/vai-navigator/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-navigator/pkg/gateway/live/session"
	"github.com/vango-go/vai-navigator/pkg/gateway/live/sessions"
	"github.com/vango-go/vai-navigator/pkg/gateway/mw"
	"github.com/vango-go/vai-navigator/pkg/gateway/principal"
	"github.com/vango-go/vai-navigator/pkg/gateway/profiles"
	"github.com/vango-go/vai-navigator/pkg/gateway/ratelimit"
)

// VoiceHandler upgrades /v1/voice to a websocket and runs one live session on
// it. Admission (method, drain state, origin, per-client session cap) is
// decided before the upgrade so rejected clients get a plain HTTP error.
type VoiceHandler struct {
	Config       config.Config
	Logger       *slog.Logger
	Model        core.ModelSource
	TTS          tts.Synthesizer
	Profiles     *profiles.Table
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker
	Limiter      *ratelimit.Limiter
	CORS         *mw.CORSPolicy
	Now          func() time.Time
}

func (h VoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFromContext(r.Context())
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		apierror.Write(w, &apierror.Error{Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed", RequestID: reqID})
		return
	}
	if h.Lifecycle != nil && h.Lifecycle.IsDraining() {
		apierror.Write(w, &apierror.Error{Type: core.ErrOverloaded, Message: "gateway is draining", Code: "draining", RequestID: reqID})
		return
	}
	if !h.CORS.OriginAllowed(r) {
		apierror.Write(w, &apierror.Error{Type: core.ErrPermission, Message: "origin is not allowed", Param: "Origin", RequestID: reqID})
		return
	}

	client := principal.Resolve(r, h.Config.TrustProxyHeaders)
	dec := h.Limiter.AcquireSession(client.Key, h.now())
	if !dec.Allowed {
		apierror.Write(w, &apierror.Error{
			Type:       core.ErrRateLimit,
			Message:    rejectMessage(dec.Reason),
			Code:       dec.Reason,
			RequestID:  reqID,
			RetryAfter: dec.RetryAfter,
		})
		return
	}
	defer dec.Permit.Release()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	var respHeader http.Header
	if reqID != "" {
		respHeader = http.Header{"X-Request-Id": []string{reqID}}
	}
	conn, err := upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		return
	}
	defer conn.Close()

	sessionID := "s_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s, err := session.New(session.Dependencies{
		Conn:      conn,
		Logger:    h.Logger,
		Model:     h.Model,
		TTS:       h.TTS,
		Profiles:  h.Profiles,
		SessionID: sessionID,
		RequestID: reqID,
		Now:       h.Now,
		Config: session.Config{
			MaxJSONMessageBytes:    h.Config.WSMaxJSONMessageBytes,
			PingInterval:           h.Config.WSPingInterval,
			WriteTimeout:           h.Config.WSWriteTimeout,
			ReadTimeout:            h.Config.WSReadTimeout,
			MaxSessionDuration:     h.Config.WSMaxSessionDuration,
			ToolResultTimeout:      h.Config.ToolResultTimeout,
			MaxPassesPerTurn:       h.Config.MaxPassesPerTurn,
			InboundFramesPerSecond: h.Config.InboundFramesPerSecond,
			InboundBytesPerSecond:  h.Config.InboundBytesPerSecond,
			InboundBurstSeconds:    h.Config.InboundBurstSeconds,
		},
	})
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "failed to start session"),
			time.Now().Add(time.Second))
		return
	}

	if h.LiveSessions != nil {
		unregister := h.LiveSessions.Register(s)
		defer unregister()
	}

	if err := s.Run(); err != nil && h.Logger != nil {
		h.Logger.Warn("voice session ended with error", "session_id", sessionID, "request_id", reqID, "client", client.Key, "error", err)
	}
}

func (h VoiceHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func rejectMessage(reason string) string {
	if reason == ratelimit.ReasonTooMany {
		return "too many active voice sessions"
	}
	return "too many connection attempts"
}
