package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/telemirror/telemirror/internal/models"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error" description:"Error message"`
	Details string `json:"details,omitempty" description:"Additional error details"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status" example:"ok" description:"Health status"`
	Version string `json:"version" example:"dev" description:"Application version"`
}

// ChatResponse represents a mirrored chat in API responses.
type ChatResponse struct {
	ChatID          string     `json:"chat_id" description:"Opaque source chat identifier"`
	Title           string     `json:"title" description:"Chat title at last discovery"`
	Kind            string     `json:"kind" description:"Chat kind: group, supergroup, channel"`
	Username        *string    `json:"username,omitempty" description:"Public username without @"`
	MemberCount     *int       `json:"member_count,omitempty" description:"Member count at last discovery"`
	LastMessageID   int64      `json:"last_message_id" description:"Newest synced message id (0 = never synced)"`
	OldestMessageID int64      `json:"oldest_message_id" description:"Oldest backfilled message id (0 = not established)"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty" description:"When the chat was last visited"`
	MessageCount    int        `json:"message_count" description:"Stored messages for this chat"`
}

// ChatsListResponse contains the list of mirrored chats.
type ChatsListResponse struct {
	Chats []ChatResponse `json:"chats" description:"List of chats"`
	Total int            `json:"total" description:"Total number of chats"`
}

// MessagesListResponse contains one page of a chat's messages.
type MessagesListResponse struct {
	Messages []models.Message `json:"messages" description:"Messages, newest first"`
	Total    int              `json:"total" description:"Total stored messages for the chat"`
}

// RunResponse represents a sync run audit record.
type RunResponse struct {
	ID             uuid.UUID  `json:"id" description:"Run unique identifier"`
	StartedAt      time.Time  `json:"started_at" description:"When the run started"`
	FinishedAt     *time.Time `json:"finished_at,omitempty" description:"When the run finished"`
	Status         string     `json:"status" description:"Run status: running, success, failed"`
	Backfill       bool       `json:"backfill" description:"Whether the run walked history backward"`
	ChatsSynced    int        `json:"chats_synced" description:"Chats processed without error"`
	MessagesSynced int        `json:"messages_synced" description:"Messages stored across all chats"`
	ErrorMessage   *string    `json:"error_message,omitempty" description:"Fatal error, if the run failed"`
}

// RunsListResponse contains recent sync runs.
type RunsListResponse struct {
	Runs []RunResponse `json:"runs" description:"Recent runs, newest first"`
}

// SyncStatusResponse reports the run slot and source connection state.
type SyncStatusResponse struct {
	Running        bool       `json:"running" description:"Whether a run is in progress"`
	RunID          *uuid.UUID `json:"run_id,omitempty" description:"In-progress run id"`
	Mode           *string    `json:"mode,omitempty" description:"In-progress run mode"`
	StartedAt      *time.Time `json:"started_at,omitempty" description:"When the in-progress run started"`
	TelegramStatus string     `json:"telegram_status" description:"Source connection status"`
	QRInProgress   bool       `json:"qr_in_progress" description:"Whether QR login flow is active"`
}

// ChatFromModel converts models.Chat to ChatResponse.
func ChatFromModel(c *models.Chat, messageCount int) ChatResponse {
	return ChatResponse{
		ChatID:          c.ChatID,
		Title:           c.Title,
		Kind:            string(c.Kind),
		Username:        c.Username,
		MemberCount:     c.MemberCount,
		LastMessageID:   c.LastMessageID,
		OldestMessageID: c.OldestMessageID,
		LastSyncedAt:    c.LastSyncedAt,
		MessageCount:    messageCount,
	}
}

// RunFromModel converts models.SyncRun to RunResponse.
func RunFromModel(r *models.SyncRun) RunResponse {
	return RunResponse{
		ID:             r.ID,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Status:         string(r.Status),
		Backfill:       r.Backfill,
		ChatsSynced:    r.ChatsSynced,
		MessagesSynced: r.MessagesSynced,
		ErrorMessage:   r.ErrorMessage,
	}
}
