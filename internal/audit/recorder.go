package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bulwark/internal/metrics"
	"bulwark/pkg/requestcontext"
)

const (
	// counterWindow bounds the per-(user, event type) burst counters.
	counterWindow = 10 * time.Minute
	// burstThreshold is the count within counterWindow at which an event
	// type is considered a burst and severities start escalating.
	burstThreshold = 5

	flushBatchSize = 500
)

type counterKey struct {
	userID    string
	eventType string
}

type typeCounter struct {
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

// Recorder is the in-process event log: an append-only buffer of security
// events plus per-(user, event type) sliding burst counters. Guards call
// Record on the request path; the sweep scheduler calls Flush and
// EvictIdleCounters off it. Recording never performs I/O.
type Recorder struct {
	buffer *ringBuffer
	sink   Sink

	mu       sync.Mutex
	counters map[counterKey]*typeCounter

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

func WithBufferCapacity(capacity int) Option {
	return func(r *Recorder) { r.buffer = newRingBuffer(capacity) }
}

// NewRecorder builds a recorder that flushes to the given sink. A nil sink is
// allowed; flushed events are then discarded, which keeps tests and partial
// wirings simple.
func NewRecorder(sink Sink, opts ...Option) *Recorder {
	r := &Recorder{
		buffer:   newRingBuffer(0),
		sink:     sink,
		counters: make(map[counterKey]*typeCounter),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends a security event to the buffer and updates the burst counter
// for its (user, type) pair. When a pair reaches the burst threshold within
// the counter window, the event's severity is escalated one level and a
// single anomaly_burst event is emitted for the window.
//
// Record is fire-and-forget: it never blocks on I/O and never reports failure
// to the caller.
func (r *Recorder) Record(ctx context.Context, event SecurityEvent) {
	now := requestcontext.Now(ctx)
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Severity == "" {
		event.Severity = SeverityLow
	}

	count := r.bump(event.UserID, event.Type, now)
	if count >= burstThreshold {
		event.Severity = event.Severity.Escalate()
	}
	if count == burstThreshold {
		burst := SecurityEvent{
			ID:        uuid.New(),
			UserID:    event.UserID,
			Type:      EventAnomalyBurst,
			Timestamp: now,
			Severity:  SeverityHigh,
			Details: map[string]any{
				"event_type": event.Type,
				"count":      count,
				"window_ms":  counterWindow.Milliseconds(),
			},
		}
		r.append(ctx, burst)
	}

	r.append(ctx, event)
}

func (r *Recorder) append(ctx context.Context, event SecurityEvent) {
	if r.buffer.enqueue(event) {
		r.metrics.RecordDropped(1)
	}
	r.metrics.RecordEvent(string(event.Severity))
	if event.Severity.AtLeast(SeverityHigh) {
		r.logger.WarnContext(ctx, "security event recorded",
			"event_type", event.Type,
			"user_id", event.UserID,
			"severity", event.Severity,
		)
	}
}

// bump increments the burst counter for a (user, type) pair, hard-resetting
// the window when it has elapsed, and returns the count within the window.
func (r *Recorder) bump(userID, eventType string, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := counterKey{userID: userID, eventType: eventType}
	c := r.counters[key]
	if c == nil || now.Sub(c.windowStart) > counterWindow {
		c = &typeCounter{windowStart: now}
		r.counters[key] = c
	}
	c.count++
	c.lastSeen = now
	return c.count
}

// Flush drains the buffer to the sink in batches and returns the number of
// events handed off. Sink failures are swallowed: the log is diagnostic, not
// transactional, so an unavailable sink must never destabilize the process.
// Events in a failed batch are lost.
func (r *Recorder) Flush(ctx context.Context) int {
	flushed := 0
	for {
		batch := r.buffer.dequeueBatch(flushBatchSize)
		if len(batch) == 0 {
			return flushed
		}
		if r.sink == nil {
			flushed += len(batch)
			continue
		}

		start := time.Now()
		if err := r.sink.Append(ctx, batch); err != nil {
			r.logger.WarnContext(ctx, "audit flush failed, dropping batch",
				"batch_size", len(batch),
				"error", err,
			)
			r.metrics.RecordDropped(len(batch))
			continue
		}
		r.metrics.RecordFlushed(len(batch), float64(time.Since(start).Microseconds())/1000.0)
		flushed += len(batch)
	}
}

// Pending returns the number of buffered events awaiting flush.
func (r *Recorder) Pending() int {
	return r.buffer.len()
}

// Dropped returns the total number of events lost to overflow or failed flushes.
func (r *Recorder) Dropped() int64 {
	return r.buffer.droppedTotal()
}

// EvictIdleCounters removes burst counters idle for longer than maxIdle and
// returns how many were evicted. Called by the sweep scheduler.
func (r *Recorder) EvictIdleCounters(now time.Time, maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for key, c := range r.counters {
		if now.Sub(c.lastSeen) > maxIdle {
			delete(r.counters, key)
			evicted++
		}
	}
	return evicted
}

// ActiveUsers returns up to limit distinct user IDs with live burst counters,
// most recently seen first. The sweep scheduler uses this to pick candidates
// for periodic credit audits.
func (r *Recorder) ActiveUsers(limit int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	type seen struct {
		userID   string
		lastSeen time.Time
	}
	latest := make(map[string]time.Time)
	for key, c := range r.counters {
		if key.userID == "" {
			continue
		}
		if t, ok := latest[key.userID]; !ok || c.lastSeen.After(t) {
			latest[key.userID] = c.lastSeen
		}
	}

	users := make([]seen, 0, len(latest))
	for u, t := range latest {
		users = append(users, seen{userID: u, lastSeen: t})
	}
	// Most recently active first.
	for i := 1; i < len(users); i++ {
		for j := i; j > 0 && users[j].lastSeen.After(users[j-1].lastSeen); j-- {
			users[j], users[j-1] = users[j-1], users[j]
		}
	}

	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.userID
	}
	return out
}
