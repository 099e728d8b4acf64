package inputcheck

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"bulwark/internal/audit"
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

type URLCheckSuite struct {
	suite.Suite
	events  *recordedEvents
	checker *Checker
	ctx     context.Context
}

func TestURLCheckSuite(t *testing.T) {
	suite.Run(t, new(URLCheckSuite))
}

func (s *URLCheckSuite) SetupTest() {
	s.events = &recordedEvents{}
	s.checker = NewChecker(WithEvents(s.events))
	s.ctx = context.Background()
}

func (s *URLCheckSuite) TestValidateExternalURL() {
	user := identity.User("u1")

	tests := []struct {
		name   string
		url    string
		valid  bool
		reason string
	}{
		{name: "public https", url: "https://api.example.com/v1", valid: true},
		{name: "public http", url: "http://example.org/data.json", valid: true},
		{name: "public with port", url: "https://example.com:8443/hooks", valid: true},
		{name: "ftp scheme", url: "ftp://example.com/file", reason: "URL scheme not allowed"},
		{name: "file scheme", url: "file:///etc/passwd", reason: "URL scheme not allowed"},
		{name: "gopher scheme", url: "gopher://example.com", reason: "URL scheme not allowed"},
		{name: "no host", url: "https://", reason: "Invalid URL"},
		{name: "not a url", url: "://broken", reason: "Invalid URL"},
		{name: "localhost", url: "http://localhost:8080/admin", reason: "URL targets a restricted address"},
		{name: "loopback ip", url: "http://127.0.0.1/", reason: "URL targets a restricted address"},
		{name: "cloud metadata ip", url: "http://169.254.169.254/latest/meta-data", reason: "URL targets a restricted address"},
		{name: "gcp metadata host", url: "http://metadata.google.internal/computeMetadata/v1/", reason: "URL targets a restricted address"},
		{name: "private 10 range", url: "http://10.0.0.5/service", reason: "URL targets a restricted address"},
		{name: "private 172 range", url: "http://172.16.1.1/", reason: "URL targets a restricted address"},
		{name: "private 192 range", url: "http://192.168.1.1/router", reason: "URL targets a restricted address"},
		{name: "unspecified address", url: "http://0.0.0.0/", reason: "URL targets a restricted address"},
		{name: "ipv6 loopback", url: "http://[::1]/", reason: "URL targets a restricted address"},
		{name: "internal zone", url: "https://billing.corp.internal/api", reason: "URL targets a restricted address"},
		{name: "mdns zone", url: "http://printer.local/", reason: "URL targets a restricted address"},
		{name: "uppercase host is normalized", url: "http://LOCALHOST/", reason: "URL targets a restricted address"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			result := s.checker.ValidateExternalURL(s.ctx, tt.url, user)
			s.Equal(tt.valid, result.Valid)
			s.Equal(tt.reason, result.Reason)
		})
	}
}

func (s *URLCheckSuite) TestRejectionEvent() {
	s.checker.ValidateExternalURL(s.ctx, "http://169.254.169.254/latest/meta-data", identity.User("u1"))

	events := s.events.all()
	s.Require().Len(events, 1)
	e := events[0]
	s.Equal("u1", e.UserID)
	s.Equal(audit.EventBlockedURL, e.Type)
	s.Equal(audit.SeverityHigh, e.Severity)
	s.Equal("http://169.254.169.254/latest/meta-data", e.Details["url"])
}

func (s *URLCheckSuite) TestAcceptedURLRecordsNothing() {
	s.checker.ValidateExternalURL(s.ctx, "https://api.example.com/v1", identity.User("u1"))
	s.Empty(s.events.all())
}

func (s *URLCheckSuite) TestAdminBypass() {
	result := s.checker.ValidateExternalURL(s.ctx, "http://169.254.169.254/", identity.Admin("root"))
	s.True(result.Valid)
	s.Empty(s.events.all())
}
