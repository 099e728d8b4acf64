// Package injection classifies user-supplied text against an ordered list of
// prompt-injection patterns and neutralizes known markup before the text
// reaches downstream processing.
package injection

import (
	"context"
	"log/slog"

	"bulwark/internal/audit"
	"bulwark/internal/identity"
	"bulwark/internal/metrics"
)

// previewLen bounds the message excerpt stored with a detection event, both
// to cap log size and to avoid persisting full sensitive payloads.
const previewLen = 100

// Detection is a non-clean scan result. A nil *Detection means the message
// matched no rule.
type Detection struct {
	Blocked bool
	Label   string
	Verdict Verdict
}

// Scanner evaluates messages against the rule fixture, first match wins.
type Scanner struct {
	rules   []Rule
	events  audit.EventRecorder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Scanner)

func WithRules(rules []Rule) Option {
	return func(s *Scanner) { s.rules = rules }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

func NewScanner(events audit.EventRecorder, opts ...Option) *Scanner {
	s := &Scanner{
		rules:  DefaultRules(),
		events: events,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan classifies a message. Admins bypass scanning entirely; this is an
// explicit business rule, not a default. Rules are not cumulative: when
// several patterns co-occur, only the first rule in the fixture is reported,
// which makes rule order behaviorally significant.
func (s *Scanner) Scan(ctx context.Context, message string, caller identity.Identity) *Detection {
	if caller.Admin || message == "" {
		return nil
	}

	for _, rule := range s.rules {
		if !rule.Pattern.MatchString(message) {
			continue
		}
		det := &Detection{
			Blocked: rule.Verdict == VerdictBlock,
			Label:   rule.Label,
			Verdict: rule.Verdict,
		}
		s.record(ctx, message, caller, det)
		return det
	}
	return nil
}

func (s *Scanner) record(ctx context.Context, message string, caller identity.Identity, det *Detection) {
	severity := audit.SeverityMedium
	if det.Blocked {
		severity = audit.SeverityHigh
		s.metrics.RecordBlock("injection")
	}
	if s.events != nil {
		s.events.Record(ctx, audit.SecurityEvent{
			UserID:   caller.UserID,
			Type:     audit.EventInjectionAttempt,
			Severity: severity,
			Details: map[string]any{
				"label":   det.Label,
				"verdict": string(det.Verdict),
				"preview": preview(message),
			},
		})
	}
}

// preview returns the first previewLen characters of a message, rune-safe.
func preview(message string) string {
	runes := []rune(message)
	if len(runes) <= previewLen {
		return message
	}
	return string(runes[:previewLen])
}
