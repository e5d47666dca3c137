// Package principal identifies the client behind a request for per-client
// limits. There is no authentication; identity is the client address.
package principal

import (
	"net"
	"net/http"
	"strings"

	"github.com/vango-go/vai-navigator/pkg/gateway/ratelimit"
)

type Kind string

const (
	KindIP   Kind = "ip"
	KindAnon Kind = "anonymous"
)

type Resolved struct {
	Kind Kind
	// Raw is the client IP. It must not be logged.
	Raw string
	// Key is a hashed identifier suitable for in-memory maps.
	Key string
}

// Resolve returns the client identity for r. Proxy headers are consulted
// only when trustProxyHeaders is set.
func Resolve(r *http.Request, trustProxyHeaders bool) Resolved {
	ip := ""
	if r != nil {
		if trustProxyHeaders {
			ip = forwardedIP(r.Header)
		}
		if ip == "" {
			ip = parseIP(r.RemoteAddr)
		}
	}
	if ip == "" {
		return Resolved{Kind: KindAnon, Key: "anonymous"}
	}
	return Resolved{Kind: KindIP, Raw: ip, Key: ratelimit.KeyFromIP(ip)}
}

func forwardedIP(h http.Header) string {
	for _, name := range []string{"CF-Connecting-IP", "X-Real-IP"} {
		if ip := parseIP(h.Get(name)); ip != "" {
			return ip
		}
	}
	// "client, proxy1, proxy2": the left-most entry is the client.
	if raw := h.Get("X-Forwarded-For"); raw != "" {
		first, _, _ := strings.Cut(raw, ",")
		return parseIP(first)
	}
	return ""
}

// parseIP accepts "ip" or "ip:port" and returns the canonical IP, or "".
func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		s = h
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
