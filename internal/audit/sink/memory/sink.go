package memory

import (
	"context"
	"sync"

	"bulwark/internal/audit"
)

// Sink is an in-memory audit sink for tests and single-process development.
type Sink struct {
	mu     sync.Mutex
	events []audit.SecurityEvent

	// FailNext makes the next Append return an error, for exercising the
	// recorder's swallow-and-log path.
	FailNext error
}

func New() *Sink {
	return &Sink{}
}

func (s *Sink) Append(ctx context.Context, events []audit.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailNext != nil {
		err := s.FailNext
		s.FailNext = nil
		return err
	}
	s.events = append(s.events, events...)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *Sink) Events() []audit.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.SecurityEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ByType returns appended events of the given type.
func (s *Sink) ByType(eventType string) []audit.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.SecurityEvent
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
