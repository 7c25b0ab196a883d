// Package repository implements data access over the pgx connection pool.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telemirror/telemirror/internal/models"
)

// ChatsRepository handles chats table operations, including the
// per-chat sync cursors.
type ChatsRepository struct {
	pool *pgxpool.Pool
}

// NewChatsRepository creates a new chats repository.
func NewChatsRepository(pool *pgxpool.Pool) *ChatsRepository {
	return &ChatsRepository{pool: pool}
}

const chatColumns = `chat_id, title, kind, username, member_count,
	       last_message_id, oldest_message_id, last_synced_at,
	       created_at, updated_at`

func scanChat(row pgx.Row) (*models.Chat, error) {
	var c models.Chat
	err := row.Scan(
		&c.ChatID, &c.Title, &c.Kind, &c.Username, &c.MemberCount,
		&c.LastMessageID, &c.OldestMessageID, &c.LastSyncedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID returns a chat by its id, or nil if it does not exist.
func (r *ChatsRepository) GetByID(ctx context.Context, chatID string) (*models.Chat, error) {
	c, err := scanChat(r.pool.QueryRow(ctx, `
		SELECT `+chatColumns+`
		FROM chats
		WHERE chat_id = $1
	`, chatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat by id: %w", err)
	}
	return c, nil
}

// Upsert inserts the chat if absent and refreshes its descriptive
// attributes on conflict. Cursors are never written here.
func (r *ChatsRepository) Upsert(ctx context.Context, c *models.Chat) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO chats (chat_id, title, kind, username, member_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chat_id) DO UPDATE SET
			title        = EXCLUDED.title,
			kind         = EXCLUDED.kind,
			username     = COALESCE(EXCLUDED.username, chats.username),
			member_count = COALESCE(EXCLUDED.member_count, chats.member_count),
			updated_at   = NOW()
		RETURNING last_message_id, oldest_message_id, created_at, updated_at
	`, c.ChatID, c.Title, c.Kind, c.Username, c.MemberCount).Scan(
		&c.LastMessageID, &c.OldestMessageID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	return nil
}

// AdvanceCursors ratchets the chat cursors after a batch.
// last_message_id only ever grows; oldest_message_id only ever shrinks,
// and is written at all only when establishOldest is set (backfill runs).
// last_synced_at is refreshed as part of the same statement.
func (r *ChatsRepository) AdvanceCursors(ctx context.Context, chatID string, maxID, minID int64, establishOldest bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE chats SET
			last_message_id = GREATEST(last_message_id, $2),
			oldest_message_id = CASE
				WHEN NOT $4::boolean THEN oldest_message_id
				WHEN oldest_message_id = 0 THEN $3
				ELSE LEAST(oldest_message_id, $3)
			END,
			last_synced_at = NOW(),
			updated_at = NOW()
		WHERE chat_id = $1
	`, chatID, maxID, minID, establishOldest)
	if err != nil {
		return fmt.Errorf("advance cursors: %w", err)
	}
	return nil
}

// TouchSynced refreshes last_synced_at without moving any cursor,
// so operators can see the chat was visited even when nothing was new.
func (r *ChatsRepository) TouchSynced(ctx context.Context, chatID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE chats SET last_synced_at = NOW(), updated_at = NOW()
		WHERE chat_id = $1
	`, chatID)
	if err != nil {
		return fmt.Errorf("touch synced: %w", err)
	}
	return nil
}

// List returns all known chats ordered by title.
func (r *ChatsRepository) List(ctx context.Context) ([]models.Chat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+chatColumns+`
		FROM chats
		ORDER BY title
	`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}
