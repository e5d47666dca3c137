package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vango-go/vai-navigator/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-navigator/pkg/gateway/live/sessions"
	"github.com/vango-go/vai-navigator/pkg/gateway/profiles"
)

type readyBody struct {
	OK             bool     `json:"ok"`
	Draining       bool     `json:"draining"`
	ModelProvider  string   `json:"model_provider"`
	Profiles       []string `json:"profiles"`
	ActiveSessions int      `json:"active_sessions"`
	Issues         []string `json:"issues"`
}

func serveReady(t *testing.T, h ReadyHandler) (int, readyBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var body readyBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v body=%q", err, rr.Body.String())
	}
	return rr.Code, body
}

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestReadyHandler_ValidConfigReady(t *testing.T) {
	table, err := profiles.Default()
	if err != nil {
		t.Fatalf("profiles.Default: %v", err)
	}
	code, body := serveReady(t, ReadyHandler{
		Config:       testConfig(),
		Lifecycle:    &lifecycle.Lifecycle{},
		LiveSessions: sessions.NewTracker(),
		Profiles:     table,
	})
	if code != http.StatusOK || !body.OK {
		t.Fatalf("status=%d body=%+v", code, body)
	}
	if body.ModelProvider != "openai" {
		t.Fatalf("model_provider=%q", body.ModelProvider)
	}
	if len(body.Profiles) == 0 {
		t.Fatal("expected profile names")
	}
}

func TestReadyHandler_InvalidConfigListsIssues(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAIAPIKey = ""
	cfg.MaxPassesPerTurn = 0
	table, _ := profiles.Default()

	code, body := serveReady(t, ReadyHandler{Config: cfg, Profiles: table})
	if code != http.StatusServiceUnavailable || body.OK {
		t.Fatalf("status=%d body=%+v", code, body)
	}
	joined := strings.Join(body.Issues, "\n")
	for _, key := range []string{"NAVIGATOR_OPENAI_API_KEY", "NAVIGATOR_MAX_PASSES_PER_TURN"} {
		if !strings.Contains(joined, key) {
			t.Fatalf("issues missing %s: %v", key, body.Issues)
		}
	}
}

func TestReadyHandler_DrainingNotReady(t *testing.T) {
	lc := &lifecycle.Lifecycle{}
	lc.Drain(time.Now())
	table, _ := profiles.Default()

	code, body := serveReady(t, ReadyHandler{Config: testConfig(), Lifecycle: lc, Profiles: table})
	if code != http.StatusServiceUnavailable || !body.Draining {
		t.Fatalf("status=%d body=%+v", code, body)
	}
}

func TestReadyHandler_NoProfilesNotReady(t *testing.T) {
	code, body := serveReady(t, ReadyHandler{Config: testConfig()})
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%+v", code, body)
	}
	if body.Profiles == nil {
		t.Fatal("profiles should encode as an empty list")
	}
}

func TestNotFoundHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	NotFoundHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Error.Type != "not_found_error" {
		t.Fatalf("type=%q", body.Error.Type)
	}
}
