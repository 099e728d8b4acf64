package ratelimit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type PolicySuite struct {
	suite.Suite
}

func TestPolicySuite(t *testing.T) {
	suite.Run(t, new(PolicySuite))
}

func (s *PolicySuite) writePolicy(content string) string {
	path := filepath.Join(s.T().TempDir(), "rates.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (s *PolicySuite) TestDefaultTable() {
	table := DefaultTable()

	s.Equal(Policy{MaxRequests: 40, Window: time.Minute}, table["chat_message"])
	s.Equal(Policy{MaxRequests: 10, Window: time.Minute}, table["purchase"])
	s.Equal(Policy{MaxRequests: 3, Window: 5 * time.Minute}, table["clone_create"])
	s.Equal(Policy{MaxRequests: 5, Window: time.Minute}, table["login"])
	s.Equal(Policy{MaxRequests: 20, Window: time.Minute}, table["module_download"])
	s.Equal(Policy{MaxRequests: 120, Window: time.Minute}, table["api_call"])
}

func (s *PolicySuite) TestLoadTable() {
	s.Run("valid file replaces the table wholesale", func() {
		path := s.writePolicy(`
chat_message:
  max_requests: 15
  window: 30s
bulk_export:
  max_requests: 2
  window: 10m
`)
		table, err := LoadTable(path)
		s.Require().NoError(err)
		s.Len(table, 2)
		s.Equal(Policy{MaxRequests: 15, Window: 30 * time.Second}, table["chat_message"])
		s.Equal(Policy{MaxRequests: 2, Window: 10 * time.Minute}, table["bulk_export"])
		_, hasDefault := table["purchase"]
		s.False(hasDefault, "defaults never merge into a loaded table")
	})

	s.Run("missing file", func() {
		_, err := LoadTable(filepath.Join(s.T().TempDir(), "absent.yaml"))
		s.Error(err)
	})

	s.Run("malformed yaml", func() {
		_, err := LoadTable(s.writePolicy("chat_message: [not a map"))
		s.Error(err)
	})

	s.Run("non-positive max_requests", func() {
		_, err := LoadTable(s.writePolicy("chat_message:\n  max_requests: 0\n  window: 1m\n"))
		s.ErrorContains(err, "max_requests")
	})

	s.Run("bad window duration", func() {
		_, err := LoadTable(s.writePolicy("chat_message:\n  max_requests: 5\n  window: soon\n"))
		s.ErrorContains(err, "window")
	})
}
