package models

import "time"

// MediaKind classifies message media into a closed set resolved at ingestion.
type MediaKind string

// MediaKind constants define the supported media classifications.
const (
	MediaKindNone     MediaKind = ""
	MediaKindPhoto    MediaKind = "photo"
	MediaKindDocument MediaKind = "document"
	MediaKindOther    MediaKind = "other"
)

// Entity is a text annotation span (link, hashtag, mention) within a message.
type Entity struct {
	Type   string  `json:"type"`
	Offset int     `json:"offset"`
	Length int     `json:"length"`
	URL    *string `json:"url,omitempty"`
}

// Button is an inline action button attached to a message.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Message is one normalized unit of conversation content,
// identified by (ChatID, MessageID).
type Message struct {
	ChatID     string    `json:"chat_id"`
	MessageID  int64     `json:"message_id"`
	SenderID   *int64    `json:"sender_id,omitempty"`
	SenderName *string   `json:"sender_name,omitempty"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	HasMedia   bool      `json:"has_media"`
	MediaKind  MediaKind `json:"media_kind,omitempty"`
	MediaMime  *string   `json:"media_mime,omitempty"`
	MediaURL   *string   `json:"media_url,omitempty"`
	ReplyToID  *int64    `json:"reply_to_id,omitempty"`
	Entities   []Entity  `json:"entities,omitempty"`
	Buttons    []Button  `json:"buttons,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Empty reports whether the message carries no information worth storing.
// Such messages are never persisted.
func (m *Message) Empty() bool {
	return m.Text == "" && !m.HasMedia
}
