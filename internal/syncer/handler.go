package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/telemirror/telemirror/internal/telegram"
)

// AuthClient is the Telegram auth surface the handler needs.
type AuthClient interface {
	GetStatus() telegram.Status
	IsQRInProgress() bool
	StartQR(ctx context.Context, onQRCode func(url string)) error
	CancelQR()
}

// Handler handles HTTP requests for the sync service.
type Handler struct {
	manager *Manager
	client  AuthClient
	hub     Broadcaster // nil when the websocket hub is disabled
}

// NewHandler creates a new handler. hub may be nil.
func NewHandler(manager *Manager, client AuthClient, hub Broadcaster) *Handler {
	return &Handler{
		manager: manager,
		client:  client,
		hub:     hub,
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// SyncRequest is the trigger body. An empty body means an incremental run.
type SyncRequest struct {
	Backfill bool `json:"backfill"`
}

// SyncResponse reports the outcome of a completed run.
type SyncResponse struct {
	Success        bool   `json:"success"`
	RunID          string `json:"run_id,omitempty"`
	ChatsSynced    int    `json:"chats_synced"`
	MessagesSynced int    `json:"messages_synced"`
	DurationMs     int64  `json:"duration_ms"`
	Error          string `json:"error,omitempty"`
}

// TriggerSync handles POST /api/v1/sync. The run executes synchronously
// and the response carries its summary.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	mode := ModeIncremental
	if req.Backfill || r.URL.Query().Get("mode") == string(ModeBackfill) {
		mode = ModeBackfill
	}

	result, err := h.manager.Run(r.Context(), mode)
	if err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := SyncResponse{
		Success:        result.Err == "",
		RunID:          result.RunID.String(),
		ChatsSynced:    result.ChatsSynced,
		MessagesSynced: result.MessagesSynced,
		DurationMs:     result.Duration.Milliseconds(),
		Error:          result.Err,
	}
	respondJSON(w, http.StatusOK, resp)
}

// Status handles GET /api/v1/sync/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	telegramStatus := string(h.client.GetStatus())

	current := h.manager.Current()
	if current == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":          "idle",
			"telegram_status": telegramStatus,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "running",
		"run_id":          current.ID.String(),
		"mode":            string(current.Mode),
		"started_at":      current.StartedAt.Format(time.RFC3339),
		"telegram_status": telegramStatus,
	})
}

// AuthStatus handles GET /api/v1/auth/status
func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	status := h.client.GetStatus()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         string(status),
		"is_ready":       status == telegram.StatusReady,
		"qr_in_progress": h.client.IsQRInProgress(),
	})
}

// StartQR handles POST /api/v1/auth/qr. The QR flow runs in the
// background; codes and the final outcome arrive over the websocket.
func (h *Handler) StartQR(w http.ResponseWriter, r *http.Request) {
	if h.client.GetStatus() == telegram.StatusReady {
		respondError(w, http.StatusBadRequest, "already logged in")
		return
	}
	if h.client.IsQRInProgress() {
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "already in progress"})
		return
	}

	go func() {
		err := h.client.StartQR(context.Background(), func(url string) {
			h.broadcast("tg_qr", map[string]string{"url": url})
		})
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				h.broadcast("error", map[string]string{"message": err.Error()})
			}
			return
		}
		h.broadcast("tg_auth_success", nil)
	}()

	respondJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// CancelQR handles DELETE /api/v1/auth/qr
func (h *Handler) CancelQR(w http.ResponseWriter, r *http.Request) {
	h.client.CancelQR()
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) broadcast(eventType string, data any) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(WSEvent{Type: eventType, Data: data})
}

// helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
