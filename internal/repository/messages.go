package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telemirror/telemirror/internal/models"
)

// MessagesRepository handles messages table operations.
type MessagesRepository struct {
	pool *pgxpool.Pool
}

// NewMessagesRepository creates a new messages repository.
func NewMessagesRepository(pool *pgxpool.Pool) *MessagesRepository {
	return &MessagesRepository{pool: pool}
}

// Upsert writes a message keyed by (chat_id, message_id).
// On conflict the row is overwritten so that a retried sync enriches the
// stored record: nullable fields keep their old value when the new write
// carries null (COALESCE on EXCLUDED), text and extras are replaced.
func (r *MessagesRepository) Upsert(ctx context.Context, m *models.Message) error {
	entities, err := json.Marshal(orEmpty(m.Entities))
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}
	buttons, err := json.Marshal(orEmptyButtons(m.Buttons))
	if err != nil {
		return fmt.Errorf("marshal buttons: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO messages (chat_id, message_id, sender_id, sender_name, text,
		                      timestamp, has_media, media_kind, media_mime, media_url,
		                      reply_to_id, entities, buttons)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (chat_id, message_id) DO UPDATE SET
			sender_id   = COALESCE(EXCLUDED.sender_id, messages.sender_id),
			sender_name = COALESCE(EXCLUDED.sender_name, messages.sender_name),
			text        = EXCLUDED.text,
			timestamp   = EXCLUDED.timestamp,
			has_media   = EXCLUDED.has_media,
			media_kind  = COALESCE(EXCLUDED.media_kind, messages.media_kind),
			media_mime  = COALESCE(EXCLUDED.media_mime, messages.media_mime),
			media_url   = COALESCE(EXCLUDED.media_url, messages.media_url),
			reply_to_id = COALESCE(EXCLUDED.reply_to_id, messages.reply_to_id),
			entities    = EXCLUDED.entities,
			buttons     = EXCLUDED.buttons,
			updated_at  = NOW()
	`, m.ChatID, m.MessageID, m.SenderID, m.SenderName, m.Text,
		m.Timestamp, m.HasMedia, nullableKind(m.MediaKind), m.MediaMime, m.MediaURL,
		m.ReplyToID, entities, buttons)
	if err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

// ListByChat returns up to limit messages of a chat, newest first,
// optionally only those older than beforeID.
func (r *MessagesRepository) ListByChat(ctx context.Context, chatID string, beforeID int64, limit int) ([]models.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT chat_id, message_id, sender_id, sender_name, text,
		       timestamp, has_media, COALESCE(media_kind, ''), media_mime, media_url,
		       reply_to_id, entities, buttons, created_at, updated_at
		FROM messages
		WHERE chat_id = $1 AND ($2 = 0 OR message_id < $2)
		ORDER BY message_id DESC
		LIMIT $3
	`, chatID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var entities, buttons []byte
		if err := rows.Scan(
			&m.ChatID, &m.MessageID, &m.SenderID, &m.SenderName, &m.Text,
			&m.Timestamp, &m.HasMedia, &m.MediaKind, &m.MediaMime, &m.MediaURL,
			&m.ReplyToID, &entities, &buttons, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal(entities, &m.Entities); err != nil {
			return nil, fmt.Errorf("unmarshal entities: %w", err)
		}
		if err := json.Unmarshal(buttons, &m.Buttons); err != nil {
			return nil, fmt.Errorf("unmarshal buttons: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CountByChat returns the number of stored messages for a chat.
func (r *MessagesRepository) CountByChat(ctx context.Context, chatID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE chat_id = $1
	`, chatID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// nullableKind maps the zero MediaKind to SQL NULL so COALESCE enrichment
// works on conflict.
func nullableKind(k models.MediaKind) *string {
	if k == models.MediaKindNone {
		return nil
	}
	s := string(k)
	return &s
}

func orEmpty(e []models.Entity) []models.Entity {
	if e == nil {
		return []models.Entity{}
	}
	return e
}

func orEmptyButtons(b []models.Button) []models.Button {
	if b == nil {
		return []models.Button{}
	}
	return b
}
