// Package models defines shared data types for the application.
package models

import "time"

// ChatKind represents the kind of a Telegram conversation.
type ChatKind string

// ChatKind constants define the conversation kinds seen during discovery.
const (
	ChatKindGroup      ChatKind = "group"
	ChatKindSupergroup ChatKind = "supergroup"
	ChatKindChannel    ChatKind = "channel"
	ChatKindPrivate    ChatKind = "private"
)

// Syncable reports whether chats of this kind are eligible for mirroring.
// Private 1:1 conversations are never synced.
func (k ChatKind) Syncable() bool {
	switch k {
	case ChatKindGroup, ChatKindSupergroup, ChatKindChannel:
		return true
	}
	return false
}

// Chat represents a mirrored conversation and its sync progress.
//
// ChatID is the source-assigned identifier, stored as an opaque string
// (channel ids look like "-100123456", basic groups like "-123456").
// LastMessageID and OldestMessageID are independent watermarks:
// LastMessageID only ever grows, OldestMessageID only ever shrinks once set.
// Zero means the watermark was never established.
type Chat struct {
	ChatID          string     `json:"chat_id"`
	Title           string     `json:"title"`
	Kind            ChatKind   `json:"kind"`
	Username        *string    `json:"username,omitempty"`
	MemberCount     *int       `json:"member_count,omitempty"`
	LastMessageID   int64      `json:"last_message_id"`
	OldestMessageID int64      `json:"oldest_message_id"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
