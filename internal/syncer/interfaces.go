package syncer

import (
	"context"

	"github.com/google/uuid"

	"github.com/telemirror/telemirror/internal/models"
	"github.com/telemirror/telemirror/internal/telegram"
)

// SourceClient is the surface of the Telegram client the engine uses,
// extracted for testing.
type SourceClient interface {
	GetStatus() telegram.Status
	ListDialogs(ctx context.Context, limit int) ([]telegram.Conversation, error)
	GetHistory(ctx context.Context, conv *telegram.Conversation, minID, offsetID int64, limit int) ([]telegram.Message, error)
	ResolveSender(ctx context.Context, senderID int64) (*telegram.Sender, error)
	DownloadPhoto(ctx context.Context, ref *telegram.MediaRef) ([]byte, string, error)
}

// ChatStore persists chats and their cursors.
type ChatStore interface {
	Upsert(ctx context.Context, c *models.Chat) error
	AdvanceCursors(ctx context.Context, chatID string, maxID, minID int64, establishOldest bool) error
	TouchSynced(ctx context.Context, chatID string) error
}

// MessageStore persists normalized messages.
type MessageStore interface {
	Upsert(ctx context.Context, m *models.Message) error
}

// RunStore records run audit rows.
type RunStore interface {
	Start(ctx context.Context, backfill bool) (*models.SyncRun, error)
	Finish(ctx context.Context, id uuid.UUID, status models.RunStatus, chatsSynced, messagesSynced int, errorMessage *string) error
}
