package plugins

import (
	"sync"
	"time"
)

// PollGuard serializes and throttles repeated polls of the same key
// (a sensor name, a remote host), adapted from a per-key mutex +
// refcount lock: only one poll per key runs at a time, and a poll
// started before minInterval has elapsed since the last successful one
// is skipped rather than blocked. An entry is dropped once no caller
// holds it only if it has never recorded a successful poll, so a key's
// last-run time outlives the callers that polled it.
type PollGuard struct {
	mu    sync.Mutex
	locks map[string]*pollEntry
}

type pollEntry struct {
	mu   sync.Mutex
	ref  int
	last time.Time
}

// NewPollGuard returns an empty guard.
func NewPollGuard() *PollGuard {
	return &PollGuard{locks: map[string]*pollEntry{}}
}

func (g *PollGuard) acquire(key string) (*pollEntry, func()) {
	g.mu.Lock()
	e, ok := g.locks[key]
	if !ok {
		e = &pollEntry{}
		g.locks[key] = e
	}
	e.ref++
	g.mu.Unlock()

	e.mu.Lock()
	release := func() {
		e.mu.Unlock()
		g.mu.Lock()
		e.ref--
		if e.ref == 0 && e.last.IsZero() {
			delete(g.locks, key)
		}
		g.mu.Unlock()
	}
	return e, release
}

// Poll runs fn for key if at least minInterval has elapsed since the
// last successful run, and reports whether it ran. Concurrent callers
// for the same key serialize on the same entry, so a slow poll never
// overlaps itself. The last-run clock only advances when fn returns nil.
func (g *PollGuard) Poll(key string, minInterval time.Duration, fn func() error) (ran bool, err error) {
	e, release := g.acquire(key)
	defer release()

	if !e.last.IsZero() && time.Since(e.last) < minInterval {
		return false, nil
	}
	if err := fn(); err != nil {
		return true, err
	}
	e.last = time.Now()
	return true, nil
}
