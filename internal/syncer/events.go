package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageStoredEvent is emitted after a message write succeeds.
// Downstream consumers can re-read the full row by (ChatID, MessageID).
type MessageStoredEvent struct {
	RunID     uuid.UUID `json:"run_id"`
	ChatID    string    `json:"chat_id"`
	MessageID int64     `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
	HasMedia  bool      `json:"has_media"`
}

// EventPublisher delivers stored-message events to external consumers.
// Delivery is best-effort: a failed publish is logged and never fails
// the message write that preceded it.
type EventPublisher interface {
	PublishMessageStored(ctx context.Context, event MessageStoredEvent) error
}

// Broadcaster pushes progress events to connected UI clients.
type Broadcaster interface {
	Broadcast(v any)
}

// WSEvent is the envelope for progress events pushed over the websocket.
type WSEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
