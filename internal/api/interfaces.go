package api

import (
	"context"

	"github.com/telemirror/telemirror/internal/models"
	"github.com/telemirror/telemirror/internal/syncer"
	"github.com/telemirror/telemirror/internal/telegram"
)

// ChatsRepository defines the interface for chat data access.
type ChatsRepository interface {
	List(ctx context.Context) ([]models.Chat, error)
	GetByID(ctx context.Context, chatID string) (*models.Chat, error)
}

// MessagesRepository defines the interface for message data access.
type MessagesRepository interface {
	ListByChat(ctx context.Context, chatID string, beforeID int64, limit int) ([]models.Message, error)
	CountByChat(ctx context.Context, chatID string) (int, error)
}

// RunsRepository defines the interface for run audit data access.
type RunsRepository interface {
	Recent(ctx context.Context, limit int) ([]models.SyncRun, error)
}

// TelegramClient defines the interface for Telegram status reporting.
type TelegramClient interface {
	GetStatus() telegram.Status
	IsQRInProgress() bool
}

// SyncManager defines the interface for inspecting the run slot.
type SyncManager interface {
	Current() *syncer.RunState
}
