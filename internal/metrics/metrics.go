package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine-wide prometheus instruments. A nil *Metrics is
// valid everywhere; all record methods are nil-safe so unit tests can skip
// metric registration entirely.
type Metrics struct {
	EventsRecorded   *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	EventsFlushed    prometheus.Counter
	FlushDurationMs  prometheus.Histogram
	GuardBlocks      *prometheus.CounterVec
	RateLimitDenials *prometheus.CounterVec
	SweepRuns        prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_security_events_recorded_total",
			Help: "Total security events recorded, by severity",
		}, []string{"severity"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bulwark_security_events_dropped_total",
			Help: "Total security events dropped due to buffer overflow or flush failure",
		}),
		EventsFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bulwark_security_events_flushed_total",
			Help: "Total security events flushed to the audit sink",
		}),
		FlushDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bulwark_audit_flush_duration_ms",
			Help:    "Latency of audit sink flushes in milliseconds",
			Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		GuardBlocks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_guard_blocks_total",
			Help: "Total blocking verdicts, by guard",
		}, []string{"guard"}),
		RateLimitDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_ratelimit_denials_total",
			Help: "Total rate limit denials, by action",
		}, []string{"action"}),
		SweepRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bulwark_sweep_runs_total",
			Help: "Total maintenance sweeps completed",
		}),
	}
}

func (m *Metrics) RecordEvent(severity string) {
	if m == nil {
		return
	}
	m.EventsRecorded.WithLabelValues(severity).Inc()
}

func (m *Metrics) RecordDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EventsDropped.Add(float64(n))
}

func (m *Metrics) RecordFlushed(n int, durationMs float64) {
	if m == nil {
		return
	}
	m.EventsFlushed.Add(float64(n))
	m.FlushDurationMs.Observe(durationMs)
}

func (m *Metrics) RecordBlock(guard string) {
	if m == nil {
		return
	}
	m.GuardBlocks.WithLabelValues(guard).Inc()
}

func (m *Metrics) RecordRateLimitDenial(action string) {
	if m == nil {
		return
	}
	m.RateLimitDenials.WithLabelValues(action).Inc()
}

func (m *Metrics) RecordSweep() {
	if m == nil {
		return
	}
	m.SweepRuns.Inc()
}
