package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity classifies how urgently a security event needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityOrder = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Escalate returns the next severity up. Critical stays critical.
func (s Severity) Escalate() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// AtLeast reports whether s is at or above the given severity.
func (s Severity) AtLeast(other Severity) bool {
	return severityOrder[s] >= severityOrder[other]
}

// Event types emitted by the guards. Names are stable identifiers consumed by
// downstream alerting, so treat them as a wire format.
const (
	EventInjectionAttempt   = "injection_attempt"
	EventInvalidCreditOp    = "invalid_credit_operation"
	EventCreditDiscrepancy  = "credit_balance_discrepancy"
	EventPurchaseVelocity   = "purchase_velocity_exceeded"
	EventRateLimitExceeded  = "rate_limit_exceeded"
	EventFingerprintChanged = "session_fingerprint_changed"
	EventTokenRejected      = "download_token_rejected"
	EventBlockedURL         = "external_url_blocked"
	EventBlockedPath        = "file_path_blocked"
	EventAnomalyBurst       = "anomaly_burst"
)

// SecurityEvent is the append-only record every guard emits on a detection.
// Events live in the in-process buffer until flushed to the external audit
// sink, at which point they are dropped from memory.
type SecurityEvent struct {
	ID        uuid.UUID      `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Severity  Severity       `json:"severity"`
}

// EventRecorder is the narrow port guards use to report detections.
// Recording is fire-and-forget: it never blocks on I/O and never fails
// back to the caller.
type EventRecorder interface {
	Record(ctx context.Context, event SecurityEvent)
}

// Sink persists flushed event batches. Implementations are best-effort
// collaborators; the recorder swallows their failures.
type Sink interface {
	Append(ctx context.Context, events []SecurityEvent) error
}
