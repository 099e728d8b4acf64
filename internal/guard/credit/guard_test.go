package credit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"bulwark/internal/audit"
	"bulwark/internal/guard/credit/store/memory"
	"bulwark/internal/identity"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []audit.SecurityEvent
}

func (r *recordedEvents) Record(_ context.Context, event audit.SecurityEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordedEvents) all() []audit.SecurityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.SecurityEvent(nil), r.events...)
}

type GuardSuite struct {
	suite.Suite
	ledger *memory.Ledger
	events *recordedEvents
	guard  *Guard
	ctx    context.Context
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardSuite))
}

func (s *GuardSuite) SetupTest() {
	s.ledger = memory.New()
	s.events = &recordedEvents{}
	s.guard = NewGuard(s.ledger, WithEvents(s.events))
	s.ctx = context.Background()
}

func (s *GuardSuite) TestValidateOperation() {
	user := identity.User("u1")

	tests := []struct {
		name   string
		kind   OperationKind
		amount int64
		valid  bool
		reason string
	}{
		{name: "consume one credit", kind: OpConsume, amount: 1, valid: true},
		{name: "consume at ceiling", kind: OpConsume, amount: MaxOperationAmount, valid: true},
		{name: "add typical amount", kind: OpAdd, amount: 500, valid: true},
		{name: "refill typical amount", kind: OpRefill, amount: 100, valid: true},
		{name: "zero amount", kind: OpConsume, amount: 0, valid: false, reason: "Invalid credit amount"},
		{name: "negative amount", kind: OpConsume, amount: -5, valid: false, reason: "Invalid credit amount"},
		{name: "above ceiling", kind: OpAdd, amount: MaxOperationAmount + 1, valid: false, reason: "Credit amount exceeds maximum allowed"},
		{name: "unknown kind", kind: OperationKind("transfer"), amount: 10, valid: false, reason: "Unknown credit operation"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			result := s.guard.ValidateOperation(s.ctx, tt.kind, tt.amount, user)
			s.Equal(tt.valid, result.Valid)
			s.Equal(tt.reason, result.Reason)
		})
	}
}

func (s *GuardSuite) TestValidateOperationAdminBypass() {
	admin := identity.Admin("root")

	result := s.guard.ValidateOperation(s.ctx, OperationKind("transfer"), -999, admin)
	s.True(result.Valid)
	s.Empty(s.events.all(), "bypassed validations record nothing")
}

func (s *GuardSuite) TestRejectionEvent() {
	s.guard.ValidateOperation(s.ctx, OpConsume, -5, identity.User("u1"))

	events := s.events.all()
	s.Require().Len(events, 1)
	e := events[0]
	s.Equal("u1", e.UserID)
	s.Equal(audit.EventInvalidCreditOp, e.Type)
	s.Equal(audit.SeverityMedium, e.Severity)
	s.Equal("consume", e.Details["kind"])
	s.Equal(int64(-5), e.Details["amount"])
}

func (s *GuardSuite) TestAuditBalance() {
	s.Run("matching ledger and balance is consistent", func() {
		s.ledger.AddTransaction("u1", 100)
		s.ledger.AddTransaction("u1", -30)
		s.ledger.SetBalance("u1", 70)

		report := s.guard.AuditBalance(s.ctx, "u1")
		s.True(report.Consistent)
		s.Equal(int64(70), report.ExpectedBalance)
		s.Equal(int64(70), report.ActualBalance)
		s.Equal(int64(0), report.Discrepancy)
	})

	s.Run("drift within tolerance is consistent", func() {
		s.ledger.AddTransaction("u2", 100)
		s.ledger.SetBalance("u2", 110)

		result := s.guard.AuditBalance(s.ctx, "u2")
		s.True(result.Consistent)
		s.Equal(int64(10), result.Discrepancy)
		s.Empty(s.events.all())
	})

	s.Run("drift above tolerance is a critical discrepancy", func() {
		s.ledger.AddTransaction("u3", 100)
		s.ledger.SetBalance("u3", 111)

		result := s.guard.AuditBalance(s.ctx, "u3")
		s.False(result.Consistent)
		s.Equal(int64(11), result.Discrepancy)

		events := s.events.all()
		s.Require().Len(events, 1)
		s.Equal(audit.EventCreditDiscrepancy, events[0].Type)
		s.Equal(audit.SeverityCritical, events[0].Severity)
		s.Equal(int64(100), events[0].Details["expected_balance"])
		s.Equal(int64(111), events[0].Details["actual_balance"])
	})

	s.Run("negative drift uses absolute discrepancy", func() {
		s.ledger.AddTransaction("u4", 100)
		s.ledger.SetBalance("u4", 50)

		result := s.guard.AuditBalance(s.ctx, "u4")
		s.False(result.Consistent)
		s.Equal(int64(50), result.Discrepancy)
	})
}

func (s *GuardSuite) TestAuditBalanceFailsOpen() {
	s.ledger.Err = errors.New("ledger down")

	result := s.guard.AuditBalance(s.ctx, "u1")
	s.True(result.Consistent, "unreachable ledger must not flag users")
	s.Zero(result.ExpectedBalance)
	s.Zero(result.ActualBalance)
	s.Empty(s.events.all())
}
