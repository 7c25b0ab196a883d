package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the state of a sync run.
type RunStatus string

// RunStatus constants define the possible states of a sync run.
const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// SyncRun is the audit record of one engine invocation.
// ErrorMessage is set only on a run-level fatal error; per-chat errors
// are logged but never recorded here.
type SyncRun struct {
	ID             uuid.UUID  `json:"id"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Status         RunStatus  `json:"status"`
	Backfill       bool       `json:"backfill"`
	ChatsSynced    int        `json:"chats_synced"`
	MessagesSynced int        `json:"messages_synced"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
}
