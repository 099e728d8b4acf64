package inputcheck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"bulwark/internal/audit"
	"bulwark/internal/identity"
)

type PathCheckSuite struct {
	suite.Suite
	events  *recordedEvents
	checker *Checker
	ctx     context.Context
}

func TestPathCheckSuite(t *testing.T) {
	suite.Run(t, new(PathCheckSuite))
}

func (s *PathCheckSuite) SetupTest() {
	s.events = &recordedEvents{}
	s.checker = NewChecker(WithEvents(s.events))
	s.ctx = context.Background()
}

func (s *PathCheckSuite) TestValidateFilePath() {
	user := identity.User("u1")

	tests := []struct {
		name   string
		path   string
		valid  bool
		reason string
	}{
		{name: "relative data file", path: "reports/q1.csv", valid: true},
		{name: "nested workspace file", path: "workspace/project/readme.md", valid: true},
		{name: "empty path", path: "", reason: "Invalid file path"},
		{name: "parent traversal", path: "../../etc/shadow", reason: "Path traversal not allowed"},
		{name: "embedded traversal", path: "uploads/../../../secret", reason: "Path traversal not allowed"},
		{name: "home expansion", path: "~/private/notes.txt", reason: "Path traversal not allowed"},
		{name: "env file", path: "config/.env", reason: "Path references a restricted location"},
		{name: "ssh directory", path: "home/user/.ssh/known_hosts", reason: "Path references a restricted location"},
		{name: "private key", path: "backup/id_rsa", reason: "Path references a restricted location"},
		{name: "aws credentials", path: "root/.aws/config", reason: "Path references a restricted location"},
		{name: "passwd file", path: "/etc/passwd", reason: "Path references a restricted location"},
		{name: "proc filesystem", path: "/proc/self/environ", reason: "Path references a restricted location"},
		{name: "git directory", path: "repo/.git/config", reason: "Path references a restricted location"},
		{name: "case insensitive match", path: "Config/.ENV", reason: "Path references a restricted location"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			result := s.checker.ValidateFilePath(s.ctx, tt.path, user)
			s.Equal(tt.valid, result.Valid)
			s.Equal(tt.reason, result.Reason)
		})
	}
}

func (s *PathCheckSuite) TestTraversalTakesPrecedenceOverFragments() {
	// Both rules match; the traversal rejection is reported.
	result := s.checker.ValidateFilePath(s.ctx, "../.ssh/id_rsa", identity.User("u1"))
	s.False(result.Valid)
	s.Equal("Path traversal not allowed", result.Reason)
}

func (s *PathCheckSuite) TestRejectionEvent() {
	s.checker.ValidateFilePath(s.ctx, "../../etc/shadow", identity.User("u1"))

	events := s.events.all()
	s.Require().Len(events, 1)
	e := events[0]
	s.Equal(audit.EventBlockedPath, e.Type)
	s.Equal(audit.SeverityHigh, e.Severity)
	s.Equal("../../etc/shadow", e.Details["path"])
}

func (s *PathCheckSuite) TestAdminBypass() {
	result := s.checker.ValidateFilePath(s.ctx, "../../etc/shadow", identity.Admin("root"))
	s.True(result.Valid)
	s.Empty(s.events.all())
}
