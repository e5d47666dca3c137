package session

import "time"

// inboundLimiter is a token bucket over client frames: one bucket counts
// frames, the other counts bytes. A zero rate disables that bucket.
type inboundLimiter struct {
	now          func() time.Time
	frameRate    int64
	frameTokens  int64
	byteRate     int64
	byteTokens   int64
	burstSeconds int64
	lastRefill   time.Time
}

func newInboundLimiter(now func() time.Time, framesPerSecond int, bytesPerSecond int64, burstSeconds int) *inboundLimiter {
	if framesPerSecond <= 0 && bytesPerSecond <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	if burstSeconds <= 0 {
		burstSeconds = 1
	}

	l := &inboundLimiter{
		now:          now,
		frameRate:    int64(framesPerSecond),
		byteRate:     bytesPerSecond,
		burstSeconds: int64(burstSeconds),
		lastRefill:   now(),
	}
	l.frameTokens = l.frameRate * l.burstSeconds
	l.byteTokens = l.byteRate * l.burstSeconds
	return l
}

// Allow reports whether a frame of n bytes fits in the budget and, if so,
// spends it. A nil limiter allows everything.
func (l *inboundLimiter) Allow(n int) bool {
	if l == nil {
		return true
	}
	l.refill()

	if n < 0 {
		n = 0
	}
	if l.frameRate > 0 && l.frameTokens < 1 {
		return false
	}
	if l.byteRate > 0 && l.byteTokens < int64(n) {
		return false
	}
	if l.frameRate > 0 {
		l.frameTokens--
	}
	if l.byteRate > 0 {
		l.byteTokens -= int64(n)
	}
	return true
}

func (l *inboundLimiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	l.frameTokens = refillBucket(l.frameTokens, l.frameRate, l.burstSeconds, elapsed)
	l.byteTokens = refillBucket(l.byteTokens, l.byteRate, l.burstSeconds, elapsed)
	l.lastRefill = now
}

func refillBucket(tokens, rate, burstSeconds int64, elapsed time.Duration) int64 {
	if rate <= 0 {
		return tokens
	}
	tokens += elapsed.Nanoseconds() * rate / int64(time.Second)
	if limit := rate * burstSeconds; tokens > limit {
		tokens = limit
	}
	return tokens
}
