// Package sweep runs the periodic maintenance pass: evicting expired
// counters, windows, and fingerprints, flushing the event buffer, and
// auditing balances for recently-active users. It runs on its own timer and
// only ever takes the same short store locks the request path does, so it
// can never stall a guard call.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"bulwark/internal/guard/credit"
	"bulwark/internal/metrics"
	"bulwark/pkg/requestcontext"
)

const (
	// counterIdle is the retention for event burst counters.
	counterIdle = 10 * time.Minute
	// fingerprintIdle is the retention for session fingerprints.
	fingerprintIdle = 2 * time.Hour
	// purchaseIdle is the retention for purchase trackers.
	purchaseIdle = time.Hour
	// maxAuditsPerSweep bounds ledger reads per pass so a busy platform
	// cannot turn the sweep into a ledger load test.
	maxAuditsPerSweep = 100
)

// Report summarizes one sweep.
type Report struct {
	CreditAudits            int
	AnomaliesDetected       int
	RateLimitWindowsCleaned int
	CountersEvicted         int
	FingerprintsEvicted     int
	PurchaseTrackersEvicted int
	EventsFlushed           int
}

// EventLog is the recorder surface the sweeper needs.
type EventLog interface {
	Flush(ctx context.Context) int
	EvictIdleCounters(now time.Time, maxIdle time.Duration) int
	ActiveUsers(limit int) []string
}

// WindowJanitor evicts idle rate-limit windows.
type WindowJanitor interface {
	EvictIdle(ctx context.Context) (int, error)
}

// IdleEvictor evicts idle per-user state (fingerprints, purchase trackers).
type IdleEvictor interface {
	EvictIdle(now time.Time, maxIdle time.Duration) int
}

// BalanceAuditor reconciles one user's ledger against their balance.
type BalanceAuditor interface {
	AuditBalance(ctx context.Context, userID string) credit.BalanceAudit
}

type Sweeper struct {
	events       EventLog
	windows      WindowJanitor
	fingerprints IdleEvictor
	purchases    IdleEvictor
	auditor      BalanceAuditor // optional; nil skips credit audits

	startDelay time.Duration
	interval   time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Sweeper)

func WithAuditor(auditor BalanceAuditor) Option {
	return func(s *Sweeper) { s.auditor = auditor }
}

func WithStartDelay(d time.Duration) Option {
	return func(s *Sweeper) { s.startDelay = d }
}

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) { s.interval = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

func New(events EventLog, windows WindowJanitor, fingerprints, purchases IdleEvictor, opts ...Option) *Sweeper {
	s := &Sweeper{
		events:       events,
		windows:      windows,
		fingerprints: fingerprints,
		purchases:    purchases,
		startDelay:   time.Minute,
		interval:     30 * time.Minute,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps once after the start delay, then on the fixed interval until the
// context is canceled. Intended to run on its own goroutine for the life of
// the process.
func (s *Sweeper) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.startDelay):
	}
	s.RunSweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunSweep(ctx)
		}
	}
}

// RunSweep performs a single maintenance pass and returns its report.
func (s *Sweeper) RunSweep(ctx context.Context) Report {
	now := requestcontext.Now(ctx)
	var report Report

	if s.auditor != nil {
		for _, userID := range s.events.ActiveUsers(maxAuditsPerSweep) {
			result := s.auditor.AuditBalance(ctx, userID)
			report.CreditAudits++
			if !result.Consistent {
				report.AnomaliesDetected++
			}
		}
	}

	cleaned, err := s.windows.EvictIdle(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "rate window eviction failed", "error", err)
	}
	report.RateLimitWindowsCleaned = cleaned

	report.CountersEvicted = s.events.EvictIdleCounters(now, counterIdle)
	report.FingerprintsEvicted = s.fingerprints.EvictIdle(now, fingerprintIdle)
	report.PurchaseTrackersEvicted = s.purchases.EvictIdle(now, purchaseIdle)

	// Flush last so events emitted during this sweep (discrepancies, bursts)
	// leave with the same pass.
	report.EventsFlushed = s.events.Flush(ctx)

	s.metrics.RecordSweep()
	s.logger.InfoContext(ctx, "maintenance sweep complete",
		"credit_audits", report.CreditAudits,
		"anomalies_detected", report.AnomaliesDetected,
		"rate_windows_cleaned", report.RateLimitWindowsCleaned,
		"counters_evicted", report.CountersEvicted,
		"fingerprints_evicted", report.FingerprintsEvicted,
		"purchase_trackers_evicted", report.PurchaseTrackersEvicted,
		"events_flushed", report.EventsFlushed,
	)
	return report
}
