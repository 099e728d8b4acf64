package memory

import (
	"context"
	"sync"
	"time"

	"bulwark/pkg/requestcontext"
)

// idleFactor sets window retention: a window untouched for idleFactor times
// its own duration is evicted by the sweeper.
const idleFactor = 2

type rateWindow struct {
	count       int
	windowStart time.Time
	window      time.Duration
	lastSeen    time.Time
}

// Store is the in-memory window store: one hard-reset counter per key, the
// whole map behind a single mutex. Every operation is a short critical
// section with no I/O, so one lock is cheaper than per-key juggling at the
// request rates a single process sees.
type Store struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
}

func New() *Store {
	return &Store{windows: make(map[string]*rateWindow)}
}

// Hit increments the counter for key. When the window has elapsed the counter
// restarts at 1 with a fresh window start (hard reset, not a leaky bucket).
// A window evicted mid-flight simply looks like a missing entry and gets
// recreated, so eviction races resolve to a fresh window rather than a crash.
func (s *Store) Hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[key]
	if w == nil || now.Sub(w.windowStart) > window {
		w = &rateWindow{windowStart: now, window: window}
		s.windows[key] = w
	}
	w.count++
	w.lastSeen = now
	w.window = window
	return w.count, now.Sub(w.windowStart), nil
}

// EvictIdle removes windows inactive beyond idleFactor times their duration.
func (s *Store) EvictIdle(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for key, w := range s.windows {
		if now.Sub(w.lastSeen) > time.Duration(idleFactor)*w.window {
			delete(s.windows, key)
			evicted++
		}
	}
	return evicted, nil
}

// Len returns the number of live windows. Test hook.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Contains reports whether a window exists for key. Test hook.
func (s *Store) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.windows[key]
	return ok
}
