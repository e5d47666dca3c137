package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/vango-go/vai-navigator/pkg/gateway/config"
	"github.com/vango-go/vai-navigator/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-navigator/pkg/gateway/live/sessions"
	"github.com/vango-go/vai-navigator/pkg/gateway/profiles"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler reports whether the gateway should receive new voice sessions.
// It is not ready while draining or when the configuration is invalid.
type ReadyHandler struct {
	Config       config.Config
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker
	Profiles     *profiles.Table
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK             bool     `json:"ok"`
		Draining       bool     `json:"draining"`
		ModelProvider  string   `json:"model_provider"`
		TTSProvider    string   `json:"tts_provider"`
		Profiles       []string `json:"profiles"`
		ActiveSessions int      `json:"active_sessions"`
		Issues         []string `json:"issues,omitempty"`
	}

	issues := configIssues(h.Config.Validate())
	if h.Profiles == nil {
		issues = append(issues, "no page profiles loaded")
	}
	draining := h.Lifecycle != nil && h.Lifecycle.IsDraining()
	if draining {
		issues = append(issues, "draining")
	}

	active := 0
	if h.LiveSessions != nil {
		active = h.LiveSessions.Count()
	}
	names := h.Profiles.Names()
	if names == nil {
		names = []string{}
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:             ok,
		Draining:       draining,
		ModelProvider:  h.Config.ModelProvider,
		TTSProvider:    h.Config.TTSProvider,
		Profiles:       names,
		ActiveSessions: active,
		Issues:         issues,
	})
}

// configIssues flattens a Config.Validate error into "KEY: problem" lines.
func configIssues(err error) []string {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for key, e := range verrs {
		out = append(out, key+": "+e.Error())
	}
	sort.Strings(out)
	return out
}
