package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/telemirror/telemirror/internal/models"
	"github.com/telemirror/telemirror/internal/syncer"
	"github.com/telemirror/telemirror/internal/telegram"
)

// Mock implementations for testing

type mockChatsRepo struct {
	chats []models.Chat
}

func (m *mockChatsRepo) List(ctx context.Context) ([]models.Chat, error) {
	return m.chats, nil
}

func (m *mockChatsRepo) GetByID(ctx context.Context, chatID string) (*models.Chat, error) {
	for i := range m.chats {
		if m.chats[i].ChatID == chatID {
			return &m.chats[i], nil
		}
	}
	return nil, nil
}

type mockMessagesRepo struct {
	messages []models.Message
}

func (m *mockMessagesRepo) ListByChat(ctx context.Context, chatID string, beforeID int64, limit int) ([]models.Message, error) {
	return m.messages, nil
}

func (m *mockMessagesRepo) CountByChat(ctx context.Context, chatID string) (int, error) {
	return len(m.messages), nil
}

type mockRunsRepo struct {
	runs []models.SyncRun
}

func (m *mockRunsRepo) Recent(ctx context.Context, limit int) ([]models.SyncRun, error) {
	return m.runs, nil
}

type mockTelegramClient struct {
	status telegram.Status
}

func (m *mockTelegramClient) GetStatus() telegram.Status { return m.status }
func (m *mockTelegramClient) IsQRInProgress() bool       { return false }

type mockSyncManager struct {
	current *syncer.RunState
}

func (m *mockSyncManager) Current() *syncer.RunState { return m.current }

func testDeps() *Dependencies {
	return &Dependencies{
		ChatsRepo:      &mockChatsRepo{},
		MessagesRepo:   &mockMessagesRepo{},
		RunsRepo:       &mockRunsRepo{},
		TelegramClient: &mockTelegramClient{status: telegram.StatusReady},
		SyncManager:    &mockSyncManager{},
	}
}

func testConfig() *Config {
	return &Config{
		Port:        8080,
		Title:       "Test API",
		Description: "Test",
		Version:     "1.0.0",
	}
}

func TestNewServer(t *testing.T) {
	srv := NewServer(testConfig(), testDeps())
	if srv == nil {
		t.Fatal("expected server to be created")
	}
	if srv.fuego == nil {
		t.Fatal("expected fuego server to be initialized")
	}
}

func TestServerStop(t *testing.T) {
	srv := NewServer(testConfig(), testDeps())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
	// Shutdown marks the underlying server closed, so serving must refuse.
	if err := srv.fuego.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		t.Fatalf("expected ErrServerClosed after Stop, got %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(testConfig(), testDeps())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.fuego.Mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp.Status)
	}
}

func TestListChatsEndpoint(t *testing.T) {
	now := time.Now()
	deps := testDeps()
	deps.ChatsRepo = &mockChatsRepo{
		chats: []models.Chat{
			{
				ChatID:        "-1001234",
				Title:         "Jobs Berlin",
				Kind:          models.ChatKindSupergroup,
				LastMessageID: 42,
				LastSyncedAt:  &now,
			},
		},
	}
	deps.MessagesRepo = &mockMessagesRepo{
		messages: []models.Message{{ChatID: "-1001234", MessageID: 42, Text: "hi"}},
	}

	srv := NewServer(testConfig(), deps)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats/", nil)
	w := httptest.NewRecorder()

	srv.fuego.Mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ChatsListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Total != 1 {
		t.Errorf("expected total 1, got %d", resp.Total)
	}
	if len(resp.Chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(resp.Chats))
	}
	if resp.Chats[0].MessageCount != 1 {
		t.Errorf("expected message count 1, got %d", resp.Chats[0].MessageCount)
	}
	if resp.Chats[0].LastMessageID != 42 {
		t.Errorf("expected last_message_id 42, got %d", resp.Chats[0].LastMessageID)
	}
}

func TestGetChatEndpoint_NotFound(t *testing.T) {
	srv := NewServer(testConfig(), testDeps())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats/-100999", nil)
	w := httptest.NewRecorder()

	srv.fuego.Mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestListRunsEndpoint(t *testing.T) {
	deps := testDeps()
	deps.RunsRepo = &mockRunsRepo{
		runs: []models.SyncRun{
			{
				ID:             uuid.New(),
				StartedAt:      time.Now(),
				Status:         models.RunStatusSuccess,
				ChatsSynced:    3,
				MessagesSynced: 17,
			},
		},
	}

	srv := NewServer(testConfig(), deps)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w := httptest.NewRecorder()

	srv.fuego.Mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp RunsListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(resp.Runs))
	}
	if resp.Runs[0].MessagesSynced != 17 {
		t.Errorf("expected messages_synced 17, got %d", resp.Runs[0].MessagesSynced)
	}
}

func TestSyncStatusEndpoint(t *testing.T) {
	deps := testDeps()
	deps.SyncManager = &mockSyncManager{
		current: &syncer.RunState{ID: uuid.New(), Mode: syncer.ModeBackfill, StartedAt: time.Now()},
	}

	srv := NewServer(testConfig(), deps)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()

	srv.fuego.Mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp SyncStatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !resp.Running {
		t.Error("expected running = true")
	}
	if resp.Mode == nil || *resp.Mode != string(syncer.ModeBackfill) {
		t.Errorf("expected backfill mode, got %v", resp.Mode)
	}
	if resp.TelegramStatus != string(telegram.StatusReady) {
		t.Errorf("expected READY telegram status, got %s", resp.TelegramStatus)
	}
}
