package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bulwark/internal/audit"
	"bulwark/internal/identity"
	"bulwark/pkg/requestcontext"
)

const (
	chromeLinux   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	firefoxMac    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:127.0) Gecko/20100101 Firefox/127.0"
	addrHome      = "203.0.113.10"
	addrElsewhere = "198.51.100.77"
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

type ValidatorSuite struct {
	suite.Suite
	events    *recordedEvents
	validator *Validator
	now       time.Time
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	s.events = &recordedEvents{}
	s.validator = NewValidator(WithEvents(s.events))
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *ValidatorSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(offset))
}

func (s *ValidatorSuite) TestFirstObservationSeeds() {
	obs := s.validator.Validate(s.at(0), identity.User("u1"), chromeLinux, addrHome)
	s.Empty(obs.Warning)
	s.True(s.validator.Tracked("u1"))
	s.Empty(s.events.all())
}

func (s *ValidatorSuite) TestSingleComponentChangeIsSilent() {
	user := identity.User("u1")
	s.validator.Validate(s.at(0), user, chromeLinux, addrHome)

	s.Run("agent change only", func() {
		obs := s.validator.Validate(s.at(time.Minute), user, firefoxMac, addrHome)
		s.Empty(obs.Warning)
		s.Empty(s.events.all())
	})

	s.Run("address change only", func() {
		obs := s.validator.Validate(s.at(2*time.Minute), user, firefoxMac, addrElsewhere)
		s.Empty(obs.Warning)
		s.Empty(s.events.all())
	})
}

func (s *ValidatorSuite) TestBothChangedWarnsAndRecords() {
	user := identity.User("u1")
	s.validator.Validate(s.at(0), user, chromeLinux, addrHome)

	obs := s.validator.Validate(s.at(time.Minute), user, firefoxMac, addrElsewhere)
	s.Contains(obs.Warning, "Session context changed")
	s.Contains(obs.Warning, "Firefox on Mac OS X")

	events := s.events.all()
	s.Require().Len(events, 1)
	e := events[0]
	s.Equal("u1", e.UserID)
	s.Equal(audit.EventFingerprintChanged, e.Type)
	s.Equal(audit.SeverityMedium, e.Severity)
	s.Equal("Chrome on Linux", e.Details["previous_agent"])
	s.Equal("Firefox on Mac OS X", e.Details["current_agent"])
	s.Equal(addrHome, e.Details["previous_address"])
	s.Equal(addrElsewhere, e.Details["current_address"])
}

func (s *ValidatorSuite) TestFingerprintMovesToNewValues() {
	user := identity.User("u1")
	s.validator.Validate(s.at(0), user, chromeLinux, addrHome)
	s.validator.Validate(s.at(time.Minute), user, firefoxMac, addrElsewhere)

	// The new pair is now the baseline, so repeating it is silent.
	obs := s.validator.Validate(s.at(2*time.Minute), user, firefoxMac, addrElsewhere)
	s.Empty(obs.Warning)
	s.Len(s.events.all(), 1)
}

func (s *ValidatorSuite) TestAdminWarningSuppressed() {
	admin := identity.Admin("root")
	s.validator.Validate(s.at(0), admin, chromeLinux, addrHome)

	obs := s.validator.Validate(s.at(time.Minute), admin, firefoxMac, addrElsewhere)
	s.Empty(obs.Warning, "admins see no warning")
	s.Len(s.events.all(), 1, "the event is still recorded")
	s.True(s.validator.Tracked("root"))
}

func (s *ValidatorSuite) TestEvictIdle() {
	s.validator.Validate(s.at(0), identity.User("stale"), chromeLinux, addrHome)
	s.validator.Validate(s.at(90*time.Minute), identity.User("fresh"), chromeLinux, addrHome)

	evicted := s.validator.EvictIdle(s.now.Add(FingerprintTTL+time.Minute), FingerprintTTL)
	s.Equal(1, evicted)
	s.False(s.validator.Tracked("stale"))
	s.True(s.validator.Tracked("fresh"))
}

func (s *ValidatorSuite) TestDescribeAgent() {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "desktop chrome", raw: chromeLinux, want: "Chrome on Linux"},
		{name: "desktop firefox", raw: firefoxMac, want: "Firefox on Mac OS X"},
		{name: "empty agent", raw: "", want: "Unknown client"},
		{name: "garbage agent", raw: "not-a-real-agent", want: "Unknown client"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, DescribeAgent(tt.raw))
		})
	}
}
