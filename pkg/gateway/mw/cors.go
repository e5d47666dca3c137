package mw

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORSPolicy is the cross-origin allowlist. It answers preflights for the
// HTTP routes and decides which browser origins may open the voice websocket.
// A policy with no origins allows no cross-origin access.
type CORSPolicy struct {
	c *cors.Cors
}

func NewCORSPolicy(origins []string) *CORSPolicy {
	if len(origins) == 0 {
		return &CORSPolicy{}
	}
	return &CORSPolicy{c: cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         600,
	})}
}

// Handler wraps next with CORS headers and preflight handling.
func (p *CORSPolicy) Handler(next http.Handler) http.Handler {
	if p == nil || p.c == nil {
		return next
	}
	return p.c.Handler(next)
}

// OriginAllowed reports whether r may proceed. Requests without an Origin
// header are not browser cross-origin requests and are allowed.
func (p *CORSPolicy) OriginAllowed(r *http.Request) bool {
	if strings.TrimSpace(r.Header.Get("Origin")) == "" {
		return true
	}
	if p == nil || p.c == nil {
		return false
	}
	return p.c.OriginAllowed(r)
}
