// Package apierror writes the JSON error body used for HTTP responses that
// are not websocket frames, e.g. a refused voice upgrade.
package apierror

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vango-go/vai-navigator/pkg/core"
)

type Error struct {
	Type       core.ErrorType `json:"type"`
	Message    string         `json:"message"`
	Code       string         `json:"code,omitempty"`
	Param      string         `json:"param,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	RetryAfter int            `json:"retry_after,omitempty"`
}

type Envelope struct {
	Error *Error `json:"error"`
}

// Write sends e with the status its type maps to. A positive RetryAfter is
// also sent as a Retry-After header.
func Write(w http.ResponseWriter, e *Error) {
	if e == nil {
		e = &Error{Type: core.ErrAPI, Message: "internal error"}
	}
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(e.RetryAfter))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(StatusFor(e.Type))
	_ = json.NewEncoder(w).Encode(Envelope{Error: e})
}

func StatusFor(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrPermission:
		return http.StatusForbidden
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	case core.ErrOverloaded:
		return http.StatusServiceUnavailable
	case core.ErrProvider, core.ErrAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
