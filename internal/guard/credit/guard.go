// Package credit validates the shape of credit-changing operations and
// reconciles the transaction ledger against the running balance. True
// double-spend prevention belongs to the ledger store's transactional
// locking; this guard catches smuggled amounts and drifted balances.
package credit

import (
	"context"
	"log/slog"

	"bulwark/internal/audit"
	"bulwark/internal/identity"
	"bulwark/internal/metrics"
)

// OperationKind names the credit-changing operations the platform performs.
type OperationKind string

const (
	OpConsume OperationKind = "consume"
	OpAdd     OperationKind = "add"
	OpRefill  OperationKind = "refill"
)

// MaxOperationAmount is a hard ceiling on any single credit operation.
// It rejects valid-looking but absurd amounts before they can overflow
// arithmetic downstream or drain an account in one call.
const MaxOperationAmount = 1_000_000

// balanceTolerance is the rounding discrepancy (in credit units) still
// considered consistent during a balance audit.
const balanceTolerance = 10

// OperationResult is the verdict on a single credit operation.
type OperationResult struct {
	Valid  bool
	Reason string
}

// BalanceAudit reports a ledger-vs-balance reconciliation for one user.
type BalanceAudit struct {
	Consistent      bool
	ExpectedBalance int64
	ActualBalance   int64
	Discrepancy     int64
}

// Ledger is the external credit store, read-only from this guard's side.
type Ledger interface {
	// SumTransactions returns the signed sum of all ledger entries for a user.
	SumTransactions(ctx context.Context, userID string) (int64, error)
	// GetBalance returns the user's current running balance.
	GetBalance(ctx context.Context, userID string) (int64, error)
}

type Guard struct {
	ledger  Ledger
	events  audit.EventRecorder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Guard)

func WithEvents(events audit.EventRecorder) Option {
	return func(g *Guard) { g.events = events }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

func NewGuard(ledger Ledger, opts ...Option) *Guard {
	g := &Guard{
		ledger: ledger,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ValidateOperation checks the shape of a credit-changing operation before it
// reaches the ledger. Admin callers bypass validation unconditionally.
func (g *Guard) ValidateOperation(ctx context.Context, kind OperationKind, amount int64, caller identity.Identity) OperationResult {
	if caller.Admin {
		return OperationResult{Valid: true}
	}

	switch kind {
	case OpConsume, OpAdd, OpRefill:
	default:
		return g.reject(ctx, caller, kind, amount, "Unknown credit operation")
	}

	if amount <= 0 {
		return g.reject(ctx, caller, kind, amount, "Invalid credit amount")
	}
	if amount > MaxOperationAmount {
		return g.reject(ctx, caller, kind, amount, "Credit amount exceeds maximum allowed")
	}

	// Sign games on the consume path would turn a spend into a grant. The
	// positivity rule above already rules this out; the check stays as a
	// second, independent gate on the one path where it matters.
	if kind == OpConsume && amount < 0 {
		return g.reject(ctx, caller, kind, amount, "Invalid credit amount")
	}

	return OperationResult{Valid: true}
}

func (g *Guard) reject(ctx context.Context, caller identity.Identity, kind OperationKind, amount int64, reason string) OperationResult {
	g.metrics.RecordBlock("credit")
	if g.events != nil {
		g.events.Record(ctx, audit.SecurityEvent{
			UserID:   caller.UserID,
			Type:     audit.EventInvalidCreditOp,
			Severity: audit.SeverityMedium,
			Details: map[string]any{
				"kind":   string(kind),
				"amount": amount,
				"reason": reason,
			},
		})
	}
	return OperationResult{Valid: false, Reason: reason}
}

// AuditBalance reconciles the sum of a user's ledger entries against the
// externally-read running balance. A discrepancy above the rounding tolerance
// records a critical event. When the ledger is unavailable the audit fails
// open with a consistent zero/zero report: this path is diagnostic, and an
// unreachable store must not start denying paying users.
func (g *Guard) AuditBalance(ctx context.Context, userID string) BalanceAudit {
	expected, err := g.ledger.SumTransactions(ctx, userID)
	if err != nil {
		g.logger.WarnContext(ctx, "balance audit skipped, ledger unavailable",
			"user_id", userID, "error", err)
		return BalanceAudit{Consistent: true}
	}
	actual, err := g.ledger.GetBalance(ctx, userID)
	if err != nil {
		g.logger.WarnContext(ctx, "balance audit skipped, balance read failed",
			"user_id", userID, "error", err)
		return BalanceAudit{Consistent: true}
	}

	discrepancy := actual - expected
	if discrepancy < 0 {
		discrepancy = -discrepancy
	}

	result := BalanceAudit{
		Consistent:      discrepancy <= balanceTolerance,
		ExpectedBalance: expected,
		ActualBalance:   actual,
		Discrepancy:     discrepancy,
	}

	if !result.Consistent && g.events != nil {
		g.events.Record(ctx, audit.SecurityEvent{
			UserID:   userID,
			Type:     audit.EventCreditDiscrepancy,
			Severity: audit.SeverityCritical,
			Details: map[string]any{
				"expected_balance": expected,
				"actual_balance":   actual,
				"discrepancy":      discrepancy,
			},
		})
	}
	return result
}
