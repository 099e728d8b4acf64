package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"bulwark/internal/audit"
)

// DefaultTopic is where security events land unless overridden.
const DefaultTopic = "bulwark.security.events"

// Sink publishes flushed security events to Kafka. Records are produced
// synchronously per batch so the recorder's flush result reflects broker
// acceptance; the recorder still swallows any error, keeping the pipeline
// best-effort end to end.
type Sink struct {
	client *kgo.Client
	topic  string
}

type Option func(*Sink)

func WithTopic(topic string) Option {
	return func(s *Sink) { s.topic = topic }
}

func New(client *kgo.Client, opts ...Option) *Sink {
	s := &Sink{client: client, topic: DefaultTopic}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Append(ctx context.Context, events []audit.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal security event %s: %w", e.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			// Key by user so per-user event ordering survives partitioning.
			Key:   []byte(e.UserID),
			Value: payload,
		})
	}

	results := s.client.ProduceSync(ctx, records...)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("produce security events: %w", err)
	}
	return nil
}
