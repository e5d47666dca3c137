package config

import (
	"strings"
	"testing"
	"time"
)

var gatewayEnvKeys = []string{
	"NAVIGATOR_ADDR",
	"NAVIGATOR_TRUST_PROXY_HEADERS",
	"NAVIGATOR_CORS_ORIGINS",
	"NAVIGATOR_MODEL_PROVIDER",
	"NAVIGATOR_MODEL",
	"NAVIGATOR_MAX_TOKENS",
	"NAVIGATOR_OPENAI_API_KEY",
	"NAVIGATOR_OPENAI_BASE_URL",
	"NAVIGATOR_GEMINI_API_KEY",
	"NAVIGATOR_GROQ_API_KEY",
	"NAVIGATOR_OPENROUTER_API_KEY",
	"NAVIGATOR_TTS_PROVIDER",
	"NAVIGATOR_VOICE_ID",
	"NAVIGATOR_TTS_MODEL",
	"NAVIGATOR_ELEVENLABS_API_KEY",
	"NAVIGATOR_ELEVENLABS_WS_BASE_URL",
	"NAVIGATOR_CARTESIA_API_KEY",
	"NAVIGATOR_CARTESIA_BASE_URL",
	"NAVIGATOR_PROFILES_FILE",
	"NAVIGATOR_WS_MAX_JSON_MESSAGE_BYTES",
	"NAVIGATOR_WS_PING_INTERVAL",
	"NAVIGATOR_WS_WRITE_TIMEOUT",
	"NAVIGATOR_WS_READ_TIMEOUT",
	"NAVIGATOR_WS_MAX_DURATION",
	"NAVIGATOR_WS_MAX_SESSIONS_PER_CLIENT",
	"NAVIGATOR_WS_CONNECT_RPS",
	"NAVIGATOR_WS_CONNECT_BURST",
	"NAVIGATOR_INBOUND_FPS",
	"NAVIGATOR_INBOUND_BPS",
	"NAVIGATOR_INBOUND_BURST_SECONDS",
	"NAVIGATOR_TOOL_RESULT_TIMEOUT",
	"NAVIGATOR_MAX_PASSES_PER_TURN",
	"NAVIGATOR_READ_HEADER_TIMEOUT",
	"NAVIGATOR_SHUTDOWN_GRACE_PERIOD",
	"NAVIGATOR_CONNECT_TIMEOUT",
	"NAVIGATOR_RESPONSE_HEADER_TIMEOUT",
}

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range gatewayEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("NAVIGATOR_OPENAI_API_KEY", "sk-test")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr=%q", cfg.Addr)
	}
	if cfg.ModelProvider != ModelProviderOpenAI || cfg.TTSProvider != TTSProviderSilent {
		t.Fatalf("providers=%q/%q", cfg.ModelProvider, cfg.TTSProvider)
	}
	if cfg.ToolResultTimeout != 5*time.Second {
		t.Fatalf("ToolResultTimeout=%v, want 5s", cfg.ToolResultTimeout)
	}
	if cfg.MaxPassesPerTurn != 15 {
		t.Fatalf("MaxPassesPerTurn=%d, want 15", cfg.MaxPassesPerTurn)
	}
	if cfg.WSReadTimeout != 0 {
		t.Fatalf("WSReadTimeout=%v, want 0", cfg.WSReadTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("CORSAllowedOrigins=%v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("NAVIGATOR_ADDR", ":9090")
	t.Setenv("NAVIGATOR_MODEL_PROVIDER", "Gemini")
	t.Setenv("NAVIGATOR_GEMINI_API_KEY", "g-key")
	t.Setenv("NAVIGATOR_TTS_PROVIDER", "cartesia")
	t.Setenv("NAVIGATOR_CARTESIA_API_KEY", "c-key")
	t.Setenv("NAVIGATOR_VOICE_ID", "voice-1")
	t.Setenv("NAVIGATOR_CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("NAVIGATOR_TOOL_RESULT_TIMEOUT", "2500ms")
	t.Setenv("NAVIGATOR_MAX_PASSES_PER_TURN", "4")
	t.Setenv("NAVIGATOR_TRUST_PROXY_HEADERS", "yes")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.ModelProvider != ModelProviderGemini || cfg.TTSProvider != TTSProviderCartesia {
		t.Fatalf("cfg=%+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("CORSAllowedOrigins=%v", cfg.CORSAllowedOrigins)
	}
	if cfg.ToolResultTimeout != 2500*time.Millisecond || cfg.MaxPassesPerTurn != 4 {
		t.Fatalf("turn limits=%v/%d", cfg.ToolResultTimeout, cfg.MaxPassesPerTurn)
	}
	if !cfg.TrustProxyHeaders {
		t.Fatal("TrustProxyHeaders=false, want true")
	}
}

func TestLoadFromEnv_InvalidValuesFallBackToDefaults(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("NAVIGATOR_OPENAI_API_KEY", "sk-test")
	t.Setenv("NAVIGATOR_WS_PING_INTERVAL", "soon")
	t.Setenv("NAVIGATOR_MAX_PASSES_PER_TURN", "many")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error: %v", err)
	}
	if cfg.WSPingInterval != 20*time.Second || cfg.MaxPassesPerTurn != 15 {
		t.Fatalf("ping=%v passes=%d", cfg.WSPingInterval, cfg.MaxPassesPerTurn)
	}
}

func TestLoadFromEnv_Rejects(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantKey string
	}{
		{
			name:    "unknown model provider",
			env:     map[string]string{"NAVIGATOR_MODEL_PROVIDER": "anthropic"},
			wantKey: "NAVIGATOR_MODEL_PROVIDER",
		},
		{
			name:    "missing key for selected provider",
			env:     map[string]string{"NAVIGATOR_MODEL_PROVIDER": "groq", "NAVIGATOR_OPENAI_API_KEY": "sk"},
			wantKey: "NAVIGATOR_GROQ_API_KEY",
		},
		{
			name:    "speech without voice",
			env:     map[string]string{"NAVIGATOR_OPENAI_API_KEY": "sk", "NAVIGATOR_TTS_PROVIDER": "elevenlabs", "NAVIGATOR_ELEVENLABS_API_KEY": "el"},
			wantKey: "NAVIGATOR_VOICE_ID",
		},
		{
			name:    "zero pass cap",
			env:     map[string]string{"NAVIGATOR_OPENAI_API_KEY": "sk", "NAVIGATOR_MAX_PASSES_PER_TURN": "0"},
			wantKey: "NAVIGATOR_MAX_PASSES_PER_TURN",
		},
		{
			name:    "negative read timeout",
			env:     map[string]string{"NAVIGATOR_OPENAI_API_KEY": "sk", "NAVIGATOR_WS_READ_TIMEOUT": "-1s"},
			wantKey: "NAVIGATOR_WS_READ_TIMEOUT",
		},
		{
			name:    "inbound limits without burst",
			env:     map[string]string{"NAVIGATOR_OPENAI_API_KEY": "sk", "NAVIGATOR_INBOUND_BURST_SECONDS": "0"},
			wantKey: "NAVIGATOR_INBOUND_BURST_SECONDS",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearGatewayEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantKey) {
				t.Fatalf("error %q does not name %s", err, tc.wantKey)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Config{ModelProvider: "openai", TTSProvider: "silent"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for zero config")
	}
	for _, key := range []string{"NAVIGATOR_ADDR", "NAVIGATOR_OPENAI_API_KEY", "NAVIGATOR_TOOL_RESULT_TIMEOUT"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error %q does not name %s", err, key)
		}
	}
}
