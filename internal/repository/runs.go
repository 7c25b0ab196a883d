package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telemirror/telemirror/internal/models"
)

// RunsRepository persists sync run audit records.
type RunsRepository struct {
	pool *pgxpool.Pool
}

// NewRunsRepository creates a new runs repository.
func NewRunsRepository(pool *pgxpool.Pool) *RunsRepository {
	return &RunsRepository{pool: pool}
}

// Start inserts a new run in the "running" state.
func (r *RunsRepository) Start(ctx context.Context, backfill bool) (*models.SyncRun, error) {
	run := &models.SyncRun{
		Status:   models.RunStatusRunning,
		Backfill: backfill,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sync_runs (status, backfill)
		VALUES ($1, $2)
		RETURNING id, started_at
	`, run.Status, run.Backfill).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

// Finish closes a run with its final status and aggregated counts.
func (r *RunsRepository) Finish(ctx context.Context, id uuid.UUID, status models.RunStatus, chatsSynced, messagesSynced int, errorMessage *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sync_runs
		SET finished_at = NOW(), status = $2,
		    chats_synced = $3, messages_synced = $4, error_message = $5
		WHERE id = $1
	`, id, status, chatsSynced, messagesSynced, errorMessage)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (r *RunsRepository) Recent(ctx context.Context, limit int) ([]models.SyncRun, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, started_at, finished_at, status, backfill,
		       chats_synced, messages_synced, error_message
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var run models.SyncRun
		if err := rows.Scan(
			&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.Backfill,
			&run.ChatsSynced, &run.MessagesSynced, &run.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
