package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Model backends.
const (
	ModelProviderOpenAI     = "openai"
	ModelProviderGemini     = "gemini"
	ModelProviderGroq       = "groq"
	ModelProviderOpenRouter = "openrouter"
)

// Speech backends.
const (
	TTSProviderElevenLabs = "elevenlabs"
	TTSProviderCartesia   = "cartesia"
	TTSProviderSilent     = "silent"
)

type Config struct {
	Addr string

	// If true, client identity may be derived from proxy headers like X-Forwarded-For.
	// Only enable behind a trusted proxy/LB.
	TrustProxyHeaders bool

	// CORS; empty disables cross-origin access, including websocket upgrades
	// from browsers on other origins.
	CORSAllowedOrigins []string

	// Model backend.
	ModelProvider    string
	Model            string
	MaxTokens        int
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GeminiAPIKey     string
	GroqAPIKey       string
	OpenRouterAPIKey string

	// Speech backend.
	TTSProvider         string
	VoiceID             string
	TTSModel            string
	ElevenLabsAPIKey    string
	ElevenLabsWSBaseURL string
	CartesiaAPIKey      string
	CartesiaBaseURL     string

	// Agent profiles; empty uses the embedded table.
	ProfilesFile string

	// Voice websocket (/v1/voice).
	WSMaxJSONMessageBytes  int64
	WSPingInterval         time.Duration
	WSWriteTimeout         time.Duration
	WSReadTimeout          time.Duration
	WSMaxSessionDuration   time.Duration
	WSMaxSessionsPerClient int
	WSConnectRPS           float64
	WSConnectBurst         int
	InboundFramesPerSecond int
	InboundBytesPerSecond  int64
	InboundBurstSeconds    int

	// Turns.
	ToolResultTimeout time.Duration
	MaxPassesPerTurn  int

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP client defaults
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("NAVIGATOR_ADDR", ":8080"),
		TrustProxyHeaders:             envBoolOr("NAVIGATOR_TRUST_PROXY_HEADERS", false),
		CORSAllowedOrigins:            splitCSV(os.Getenv("NAVIGATOR_CORS_ORIGINS")),
		ModelProvider:                 strings.ToLower(envOr("NAVIGATOR_MODEL_PROVIDER", ModelProviderOpenAI)),
		Model:                         envOr("NAVIGATOR_MODEL", ""),
		MaxTokens:                     envIntOr("NAVIGATOR_MAX_TOKENS", 1024),
		OpenAIAPIKey:                  envOr("NAVIGATOR_OPENAI_API_KEY", ""),
		OpenAIBaseURL:                 envOr("NAVIGATOR_OPENAI_BASE_URL", ""),
		GeminiAPIKey:                  envOr("NAVIGATOR_GEMINI_API_KEY", ""),
		GroqAPIKey:                    envOr("NAVIGATOR_GROQ_API_KEY", ""),
		OpenRouterAPIKey:              envOr("NAVIGATOR_OPENROUTER_API_KEY", ""),
		TTSProvider:                   strings.ToLower(envOr("NAVIGATOR_TTS_PROVIDER", TTSProviderSilent)),
		VoiceID:                       envOr("NAVIGATOR_VOICE_ID", ""),
		TTSModel:                      envOr("NAVIGATOR_TTS_MODEL", ""),
		ElevenLabsAPIKey:              envOr("NAVIGATOR_ELEVENLABS_API_KEY", ""),
		ElevenLabsWSBaseURL:           envOr("NAVIGATOR_ELEVENLABS_WS_BASE_URL", ""),
		CartesiaAPIKey:                envOr("NAVIGATOR_CARTESIA_API_KEY", ""),
		CartesiaBaseURL:               envOr("NAVIGATOR_CARTESIA_BASE_URL", ""),
		ProfilesFile:                  envOr("NAVIGATOR_PROFILES_FILE", ""),
		WSMaxJSONMessageBytes:         envInt64Or("NAVIGATOR_WS_MAX_JSON_MESSAGE_BYTES", 64*1024),
		WSPingInterval:                envDurationOr("NAVIGATOR_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:                envDurationOr("NAVIGATOR_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:                 envDurationOr("NAVIGATOR_WS_READ_TIMEOUT", 0),
		WSMaxSessionDuration:          envDurationOr("NAVIGATOR_WS_MAX_DURATION", 2*time.Hour),
		WSMaxSessionsPerClient:        envIntOr("NAVIGATOR_WS_MAX_SESSIONS_PER_CLIENT", 4),
		WSConnectRPS:                  envFloat64Or("NAVIGATOR_WS_CONNECT_RPS", 1.0),
		WSConnectBurst:                envIntOr("NAVIGATOR_WS_CONNECT_BURST", 5),
		InboundFramesPerSecond:        envIntOr("NAVIGATOR_INBOUND_FPS", 20),
		InboundBytesPerSecond:         envInt64Or("NAVIGATOR_INBOUND_BPS", 256*1024),
		InboundBurstSeconds:           envIntOr("NAVIGATOR_INBOUND_BURST_SECONDS", 2),
		ToolResultTimeout:             envDurationOr("NAVIGATOR_TOOL_RESULT_TIMEOUT", 5*time.Second),
		MaxPassesPerTurn:              envIntOr("NAVIGATOR_MAX_PASSES_PER_TURN", 15),
		ReadHeaderTimeout:             envDurationOr("NAVIGATOR_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:           envDurationOr("NAVIGATOR_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		UpstreamConnectTimeout:        envDurationOr("NAVIGATOR_CONNECT_TIMEOUT", 5*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("NAVIGATOR_RESPONSE_HEADER_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration. Errors are keyed by the environment
// variable that sets the offending field.
func (c Config) Validate() error {
	positive := func(min any) []validation.Rule {
		return []validation.Rule{validation.Required, validation.Min(min)}
	}
	inboundLimited := c.InboundFramesPerSecond > 0 || c.InboundBytesPerSecond > 0

	errs := validation.Errors{
		"NAVIGATOR_ADDR": validation.Validate(c.Addr, validation.Required),
		"NAVIGATOR_MODEL_PROVIDER": validation.Validate(c.ModelProvider,
			validation.Required,
			validation.In(ModelProviderOpenAI, ModelProviderGemini, ModelProviderGroq, ModelProviderOpenRouter).
				Error("must be one of openai|gemini|groq|openrouter")),
		"NAVIGATOR_MAX_TOKENS": validation.Validate(c.MaxTokens, positive(1)...),
		"NAVIGATOR_OPENAI_API_KEY": validation.Validate(c.OpenAIAPIKey,
			validation.When(c.ModelProvider == ModelProviderOpenAI, validation.Required)),
		"NAVIGATOR_GEMINI_API_KEY": validation.Validate(c.GeminiAPIKey,
			validation.When(c.ModelProvider == ModelProviderGemini, validation.Required)),
		"NAVIGATOR_GROQ_API_KEY": validation.Validate(c.GroqAPIKey,
			validation.When(c.ModelProvider == ModelProviderGroq, validation.Required)),
		"NAVIGATOR_OPENROUTER_API_KEY": validation.Validate(c.OpenRouterAPIKey,
			validation.When(c.ModelProvider == ModelProviderOpenRouter, validation.Required)),

		"NAVIGATOR_TTS_PROVIDER": validation.Validate(c.TTSProvider,
			validation.Required,
			validation.In(TTSProviderElevenLabs, TTSProviderCartesia, TTSProviderSilent).
				Error("must be one of elevenlabs|cartesia|silent")),
		"NAVIGATOR_VOICE_ID": validation.Validate(c.VoiceID,
			validation.When(c.TTSProvider != TTSProviderSilent, validation.Required)),
		"NAVIGATOR_ELEVENLABS_API_KEY": validation.Validate(c.ElevenLabsAPIKey,
			validation.When(c.TTSProvider == TTSProviderElevenLabs, validation.Required)),
		"NAVIGATOR_CARTESIA_API_KEY": validation.Validate(c.CartesiaAPIKey,
			validation.When(c.TTSProvider == TTSProviderCartesia, validation.Required)),

		"NAVIGATOR_WS_MAX_JSON_MESSAGE_BYTES":  validation.Validate(c.WSMaxJSONMessageBytes, positive(int64(1))...),
		"NAVIGATOR_WS_PING_INTERVAL":           validation.Validate(c.WSPingInterval, positive(time.Millisecond)...),
		"NAVIGATOR_WS_WRITE_TIMEOUT":           validation.Validate(c.WSWriteTimeout, positive(time.Millisecond)...),
		"NAVIGATOR_WS_READ_TIMEOUT":            validation.Validate(c.WSReadTimeout, validation.Min(time.Duration(0))),
		"NAVIGATOR_WS_MAX_DURATION":            validation.Validate(c.WSMaxSessionDuration, positive(time.Second)...),
		"NAVIGATOR_WS_MAX_SESSIONS_PER_CLIENT": validation.Validate(c.WSMaxSessionsPerClient, validation.Min(0)),
		"NAVIGATOR_WS_CONNECT_RPS":             validation.Validate(c.WSConnectRPS, validation.Min(0.0)),
		"NAVIGATOR_WS_CONNECT_BURST":           validation.Validate(c.WSConnectBurst, validation.Min(0)),
		"NAVIGATOR_INBOUND_FPS":                validation.Validate(c.InboundFramesPerSecond, validation.Min(0)),
		"NAVIGATOR_INBOUND_BPS":                validation.Validate(c.InboundBytesPerSecond, validation.Min(int64(0))),
		"NAVIGATOR_INBOUND_BURST_SECONDS": validation.Validate(c.InboundBurstSeconds,
			validation.Min(0),
			validation.When(inboundLimited, validation.Required.Error("must be >= 1 when inbound limits are enabled"))),

		"NAVIGATOR_TOOL_RESULT_TIMEOUT": validation.Validate(c.ToolResultTimeout, positive(time.Millisecond)...),
		"NAVIGATOR_MAX_PASSES_PER_TURN": validation.Validate(c.MaxPassesPerTurn, positive(1)...),

		"NAVIGATOR_READ_HEADER_TIMEOUT":     validation.Validate(c.ReadHeaderTimeout, positive(time.Millisecond)...),
		"NAVIGATOR_SHUTDOWN_GRACE_PERIOD":   validation.Validate(c.ShutdownGracePeriod, positive(time.Millisecond)...),
		"NAVIGATOR_CONNECT_TIMEOUT":         validation.Validate(c.UpstreamConnectTimeout, positive(time.Millisecond)...),
		"NAVIGATOR_RESPONSE_HEADER_TIMEOUT": validation.Validate(c.UpstreamResponseHeaderTimeout, positive(time.Millisecond)...),
	}
	if err := errs.Filter(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
