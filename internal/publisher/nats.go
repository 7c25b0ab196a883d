// Package publisher emits sync events to NATS for downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/telemirror/telemirror/internal/syncer"
)

// subject for stored-message events
const subjectMessageStored = "messages.synced"

// NATSClient is the minimal connection surface, extracted for mocking.
type NATSClient interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher implements syncer.EventPublisher over a NATS connection.
type NATSPublisher struct {
	conn NATSClient
}

// NewNATSPublisher creates a new publisher.
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// PublishMessageStored publishes a stored-message event.
func (p *NATSPublisher) PublishMessageStored(_ context.Context, event syncer.MessageStoredEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.conn.Publish(subjectMessageStored, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
