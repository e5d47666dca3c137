package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vango-go/vai-navigator/pkg/core"
	"github.com/vango-go/vai-navigator/pkg/core/voice/tts"
	"github.com/vango-go/vai-navigator/pkg/gateway/config"
	"github.com/vango-go/vai-navigator/pkg/gateway/handlers"
	"github.com/vango-go/vai-navigator/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-navigator/pkg/gateway/live/sessions"
	"github.com/vango-go/vai-navigator/pkg/gateway/mw"
	"github.com/vango-go/vai-navigator/pkg/gateway/profiles"
	"github.com/vango-go/vai-navigator/pkg/gateway/ratelimit"
	"github.com/vango-go/vai-navigator/pkg/gateway/upstream"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	model     core.ModelSource
	tts       tts.Synthesizer
	profiles  *profiles.Table
	limiter   *ratelimit.Limiter
	cors      *mw.CORSPolicy
	lifecycle *lifecycle.Lifecycle
	tracker   *sessions.Tracker
	now       func() time.Time
}

// Option overrides a backend the server would otherwise build from config.
type Option func(*Server)

func WithModel(m core.ModelSource) Option {
	return func(s *Server) { s.model = m }
}

func WithSynthesizer(t tts.Synthesizer) Option {
	return func(s *Server) { s.tts = t }
}

func WithProfiles(p *profiles.Table) Option {
	return func(s *Server) { s.profiles = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New builds the gateway. Backends not supplied through opts are created
// from cfg.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		limiter:   ratelimit.New(ratelimit.Config{ConnectRPS: cfg.WSConnectRPS, ConnectBurst: cfg.WSConnectBurst, MaxSessionsPerClient: cfg.WSMaxSessionsPerClient}),
		cors:      mw.NewCORSPolicy(cfg.CORSAllowedOrigins),
		lifecycle: &lifecycle.Lifecycle{},
		tracker:   sessions.NewTracker(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	factory := upstream.Factory{HTTPClient: newUpstreamClient(cfg)}
	if s.model == nil {
		m, err := factory.NewModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("model backend: %w", err)
		}
		s.model = m
	}
	if s.tts == nil {
		t, err := factory.NewSynthesizer(cfg)
		if err != nil {
			return nil, fmt.Errorf("speech backend: %w", err)
		}
		s.tts = t
	}
	if s.profiles == nil {
		p, err := profiles.LoadFile(cfg.ProfilesFile)
		if err != nil {
			return nil, fmt.Errorf("page profiles: %w", err)
		}
		s.profiles = p
	}

	s.routes()
	return s, nil
}

func newUpstreamClient(cfg config.Config) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: cfg.UpstreamConnectTimeout,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
		},
	}
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:       s.cfg,
		Lifecycle:    s.lifecycle,
		LiveSessions: s.tracker,
		Profiles:     s.profiles,
	})
	s.mux.Handle("/v1/voice", handlers.VoiceHandler{
		Config:       s.cfg,
		Logger:       s.logger,
		Model:        s.model,
		TTS:          s.tts,
		Profiles:     s.profiles,
		Lifecycle:    s.lifecycle,
		LiveSessions: s.tracker,
		Limiter:      s.limiter,
		CORS:         s.cors,
		Now:          s.now,
	})
	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.cors.Handler(h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining stops admitting voice sessions and fails readiness.
func (s *Server) SetDraining() {
	if s.lifecycle.Drain(s.now()) {
		s.logger.Info("gateway draining", "active_sessions", s.tracker.Count())
	}
}

func (s *Server) IsDraining() bool {
	return s.lifecycle.IsDraining()
}

func (s *Server) LiveSessionCount() int {
	return s.tracker.Count()
}

// DrainLiveSessions warns open voice sessions, waits for them until ctx is
// done and cancels whatever is left.
func (s *Server) DrainLiveSessions(ctx context.Context) {
	canceled := s.tracker.Drain(ctx, "draining", "server is shutting down")
	if canceled > 0 {
		s.logger.Warn("voice sessions cancelled at shutdown", "count", canceled)
	}
}
