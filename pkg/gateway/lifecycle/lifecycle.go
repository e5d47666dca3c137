// Package lifecycle holds process state shared across handlers.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// Lifecycle flips once from serving to draining. While draining, readiness
// fails and new voice sessions are refused.
type Lifecycle struct {
	drainingSince atomic.Int64
}

// Drain marks the process as draining. It reports false if it already was.
func (l *Lifecycle) Drain(now time.Time) bool {
	if l == nil {
		return false
	}
	return l.drainingSince.CompareAndSwap(0, now.UnixNano())
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.drainingSince.Load() != 0
}

// DrainingSince returns when draining started, or the zero time.
func (l *Lifecycle) DrainingSince() time.Time {
	if l == nil {
		return time.Time{}
	}
	ns := l.drainingSince.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
