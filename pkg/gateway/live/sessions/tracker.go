// Package sessions keeps track of the live voice sessions of this process so
// a shutdown can warn them, wait for them and finally cancel them.
package sessions

import (
	"context"
	"sync"
)

// Live is a running session.
type Live interface {
	ID() string
	Cancel()
	SendWarning(code, message string) error
}

type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*entry
	wg       sync.WaitGroup
}

type entry struct {
	live Live
	once sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*entry)}
}

// Register adds s and returns the func that removes it. A session registered
// under an id already present replaces the earlier one.
func (t *Tracker) Register(s Live) (unregister func()) {
	if t == nil || s == nil {
		return func() {}
	}
	id := s.ID()
	e := &entry{live: s}

	t.mu.Lock()
	if t.sessions == nil {
		t.sessions = make(map[string]*entry)
	}
	old := t.sessions[id]
	t.sessions[id] = e
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.remove(id, old)
	}
	return func() { t.remove(id, e) }
}

func (t *Tracker) remove(id string, e *entry) {
	e.once.Do(func() {
		t.mu.Lock()
		if t.sessions[id] == e {
			delete(t.sessions, id)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func (t *Tracker) snapshot() []Live {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Live, 0, len(t.sessions))
	for _, e := range t.sessions {
		out = append(out, e.live)
	}
	return out
}

// WarnAll sends a warning frame to every session. Delivery is best effort.
func (t *Tracker) WarnAll(code, message string) (sent int) {
	if t == nil {
		return 0
	}
	for _, s := range t.snapshot() {
		if s.SendWarning(code, message) == nil {
			sent++
		}
	}
	return sent
}

func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}
	for _, s := range t.snapshot() {
		s.Cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered session has unregistered or ctx is
// done. It reports whether all sessions finished.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// Drain warns every session, gives them until ctx is done to end on their
// own and cancels the rest. It returns how many sessions had to be cancelled.
func (t *Tracker) Drain(ctx context.Context, code, message string) (canceled int) {
	if t == nil {
		return 0
	}
	t.WarnAll(code, message)
	if t.Wait(ctx) {
		return 0
	}
	return t.CancelAll()
}
