// Package ratelimit enforces per-(user, action) sliding-window limits against
// a static policy table.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"bulwark/internal/audit"
	"bulwark/internal/identity"
	"bulwark/internal/metrics"
)

// Decision is the limiter's verdict for one request.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // positive when denied
}

// DeniedReason is the user-facing reason returned with denials.
const DeniedReason = "Rate limit exceeded. Please slow down and try again shortly."

// WindowStore holds the per-key counters. Implementations must serialize the
// read-modify-write for a single key so concurrent requests never lose
// increments; beyond that they are free to shard, lock, or delegate to a
// shared backend.
type WindowStore interface {
	// Hit increments the counter for key within a hard-reset sliding window
	// and returns the count inside the current window plus the time elapsed
	// since the window started.
	Hit(ctx context.Context, key string, window time.Duration) (count int, elapsed time.Duration, err error)

	// EvictIdle drops windows that have been inactive past their retention
	// and returns how many were removed.
	EvictIdle(ctx context.Context) (int, error)
}

// Limiter applies the policy table to actions.
type Limiter struct {
	policies Table
	store    WindowStore
	events   audit.EventRecorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Limiter)

func WithPolicies(table Table) Option {
	return func(l *Limiter) { l.policies = table }
}

func WithEvents(events audit.EventRecorder) Option {
	return func(l *Limiter) { l.events = events }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

func NewLimiter(store WindowStore, opts ...Option) *Limiter {
	l := &Limiter{
		policies: DefaultTable(),
		store:    store,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckLimit counts a request against the caller's window for the action.
//
// Admin callers bypass limiting. Actions without a policy are allowed: the
// table enumerates the endpoints worth protecting, and failing open for
// unclassified behavior is a deliberate choice, not an accident. A store
// failure also fails open with a logged warning; losing one counter update
// is cheaper than denying paying users while the backend flaps.
func (l *Limiter) CheckLimit(ctx context.Context, action string, caller identity.Identity) Decision {
	if caller.Admin {
		return Decision{Allowed: true}
	}

	policy, ok := l.policies[action]
	if !ok {
		return Decision{Allowed: true}
	}

	key := caller.UserID + ":" + action
	count, elapsed, err := l.store.Hit(ctx, key, policy.Window)
	if err != nil {
		l.logger.WarnContext(ctx, "rate limit store unavailable, allowing request",
			"action", action, "error", err)
		return Decision{Allowed: true}
	}

	if count <= policy.MaxRequests {
		return Decision{Allowed: true}
	}

	retryAfter := policy.Window - elapsed
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}

	l.metrics.RecordRateLimitDenial(action)
	if l.events != nil {
		l.events.Record(ctx, audit.SecurityEvent{
			UserID:   caller.UserID,
			Type:     audit.EventRateLimitExceeded,
			Severity: audit.SeverityMedium,
			Details: map[string]any{
				"action":         action,
				"count":          count,
				"max_requests":   policy.MaxRequests,
				"window_ms":      policy.Window.Milliseconds(),
				"retry_after_ms": retryAfter.Milliseconds(),
			},
		})
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}
}
