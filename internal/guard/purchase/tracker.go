// Package purchase tracks per-user purchase velocity to slow down
// card-testing and credit-farming runs.
package purchase

import (
	"context"
	"sync"
	"time"

	"bulwark/internal/audit"
	"bulwark/internal/identity"
	"bulwark/internal/metrics"
	"bulwark/pkg/requestcontext"
)

const (
	// Window is the sliding window for purchase counting.
	Window = time.Hour
	// MaxPerWindow is the number of purchases allowed within the window.
	MaxPerWindow = 50
)

// DeniedReason is the user-facing reason returned on a velocity denial.
const DeniedReason = "Too many purchases in the past hour. Please wait before buying again."

// Result is the verdict on a tracked purchase.
type Result struct {
	Allowed bool
	Reason  string
}

type userWindow struct {
	count         int
	firstPurchase time.Time
	lastSeen      time.Time
}

// Tracker counts purchases per user in a one-hour window. The window resets
// hard when it elapses: the counter restarts at 1 instead of decaying. That
// trades burst-at-boundary precision for a model simple enough to reason
// about under incident pressure.
type Tracker struct {
	mu      sync.Mutex
	windows map[string]*userWindow
	events  audit.EventRecorder
	metrics *metrics.Metrics
}

type Option func(*Tracker)

func WithEvents(events audit.EventRecorder) Option {
	return func(t *Tracker) { t.events = events }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{windows: make(map[string]*userWindow)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TrackPurchase records a purchase attempt and returns whether it is allowed.
// Admin callers bypass tracking entirely.
func (t *Tracker) TrackPurchase(ctx context.Context, amount int64, caller identity.Identity) Result {
	if caller.Admin {
		return Result{Allowed: true}
	}

	now := requestcontext.Now(ctx)

	t.mu.Lock()
	w := t.windows[caller.UserID]
	if w == nil || now.Sub(w.firstPurchase) > Window {
		w = &userWindow{firstPurchase: now}
		t.windows[caller.UserID] = w
	}
	w.count++
	w.lastSeen = now
	count := w.count
	t.mu.Unlock()

	if count <= MaxPerWindow {
		return Result{Allowed: true}
	}

	t.metrics.RecordBlock("purchase")
	if t.events != nil {
		t.events.Record(ctx, audit.SecurityEvent{
			UserID:   caller.UserID,
			Type:     audit.EventPurchaseVelocity,
			Severity: audit.SeverityCritical,
			Details: map[string]any{
				"count":     count,
				"amount":    amount,
				"window_ms": Window.Milliseconds(),
			},
		})
	}
	return Result{Allowed: false, Reason: DeniedReason}
}

// EvictIdle removes trackers with no activity for longer than maxIdle.
// Called by the sweep scheduler.
func (t *Tracker) EvictIdle(now time.Time, maxIdle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for userID, w := range t.windows {
		if now.Sub(w.lastSeen) > maxIdle {
			delete(t.windows, userID)
			evicted++
		}
	}
	return evicted
}

// ActiveWindows returns the number of live per-user windows. Test hook.
func (t *Tracker) ActiveWindows() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}
