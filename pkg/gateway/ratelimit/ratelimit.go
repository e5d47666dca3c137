// Package ratelimit bounds how often a client may open voice sessions and how
// many it may hold open at once. State is in-memory and per process.
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

type Config struct {
	// Connect rate (token bucket); zero disables it.
	ConnectRPS   float64
	ConnectBurst int

	// Concurrent sessions per client; zero disables the cap.
	MaxSessionsPerClient int

	// Operational bounds for the in-memory map.
	MaxEntries int
	EntryTTL   time.Duration
}

type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*clientLimiter
}

type clientLimiter struct {
	mu sync.Mutex

	tb     tokenBucket
	active int

	lastSeen time.Time
}

type tokenBucket struct {
	tokens float64
	last   time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{
		cfg: cfg,
		m:   make(map[string]*clientLimiter),
	}
}

// KeyFromIP returns a map key for a client address that does not keep the
// raw address around.
func KeyFromIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return "ip_" + hex.EncodeToString(sum[:12])
}

type Permit struct {
	release func()
}

func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	p.release()
	p.release = nil
}

type Decision struct {
	Allowed    bool
	RetryAfter int
	Reason     string
	Permit     *Permit
}

// Rejection reasons.
const (
	ReasonConnectRate = "connect_rate"
	ReasonTooMany     = "too_many_sessions"
)

// AcquireSession admits a new session for client. An allowed decision
// carries a Permit that must be released when the session ends.
func (l *Limiter) AcquireSession(client string, now time.Time) Decision {
	if l == nil {
		return Decision{Allowed: true, Permit: &Permit{}}
	}
	if client == "" {
		client = "anonymous"
	}

	cl := l.getOrCreate(client, now)
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.lastSeen = now

	if l.cfg.MaxSessionsPerClient > 0 && cl.active >= l.cfg.MaxSessionsPerClient {
		return Decision{Allowed: false, RetryAfter: 1, Reason: ReasonTooMany}
	}
	if l.cfg.ConnectRPS > 0 && l.cfg.ConnectBurst > 0 {
		if ok, retryAfter := cl.allowToken(now, l.cfg.ConnectRPS, l.cfg.ConnectBurst); !ok {
			return Decision{Allowed: false, RetryAfter: retryAfter, Reason: ReasonConnectRate}
		}
	}

	cl.active++
	return Decision{
		Allowed: true,
		Permit: &Permit{release: func() {
			cl.mu.Lock()
			cl.active--
			cl.mu.Unlock()
		}},
	}
}

// Active returns the number of open sessions held by client.
func (l *Limiter) Active(client string) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	cl, ok := l.m[client]
	l.mu.Unlock()
	if !ok {
		return 0
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.active
}

func (l *Limiter) getOrCreate(client string, now time.Time) *clientLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cl, ok := l.m[client]; ok {
		return cl
	}
	if len(l.m) >= l.cfg.MaxEntries {
		l.gcLocked(now)
	}
	cl := &clientLimiter{lastSeen: now}
	l.m[client] = cl
	return cl
}

// gcLocked drops idle entries. Entries with open sessions are kept so their
// permits stay accounted for.
func (l *Limiter) gcLocked(now time.Time) {
	for k, v := range l.m {
		v.mu.Lock()
		idle := v.active == 0 && now.Sub(v.lastSeen) > l.cfg.EntryTTL
		v.mu.Unlock()
		if idle {
			delete(l.m, k)
		}
	}
}

// allowToken takes one token from the client's connect bucket. Callers hold cl.mu.
func (cl *clientLimiter) allowToken(now time.Time, rps float64, burst int) (bool, int) {
	capacity := float64(burst)
	if cl.tb.last.IsZero() {
		cl.tb = tokenBucket{tokens: capacity, last: now}
	}

	elapsed := now.Sub(cl.tb.last).Seconds()
	if elapsed > 0 {
		cl.tb.tokens = math.Min(capacity, cl.tb.tokens+(elapsed*rps))
		cl.tb.last = now
	}

	if cl.tb.tokens >= 1.0 {
		cl.tb.tokens -= 1.0
		return true, 0
	}

	needed := 1.0 - cl.tb.tokens
	retryAfter := int(math.Ceil(needed / rps))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}
