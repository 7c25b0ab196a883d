package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyRunning is returned when a trigger arrives while a run is
// still in progress. At most one run executes at a time.
var ErrAlreadyRunning = errors.New("a sync run is already in progress")

// Engine is the run surface the manager guards, extracted for testing.
type Engine interface {
	Run(ctx context.Context, mode Mode) (*RunResult, error)
}

// RunState describes the run currently in progress.
type RunState struct {
	ID        uuid.UUID `json:"id"`
	Mode      Mode      `json:"mode"`
	StartedAt time.Time `json:"started_at"`
}

// Manager serializes engine runs: concurrent triggers beyond the first
// are rejected, never queued.
type Manager struct {
	engine Engine

	mu      sync.Mutex
	current *RunState
}

// NewManager creates a run manager around the engine.
func NewManager(engine Engine) *Manager {
	return &Manager{engine: engine}
}

// Run executes one sync pass, blocking until it completes.
// Returns ErrAlreadyRunning when another run holds the slot.
func (m *Manager) Run(ctx context.Context, mode Mode) (*RunResult, error) {
	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	state := &RunState{ID: uuid.New(), Mode: mode, StartedAt: time.Now()}
	m.current = state
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.current == state {
			m.current = nil
		}
		m.mu.Unlock()
	}()

	return m.engine.Run(ctx, mode)
}

// Current returns the in-progress run, or nil when idle.
func (m *Manager) Current() *RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	state := *m.current
	return &state
}
