// Package syncer implements the incremental chat mirroring engine:
// discovery, per-chat windowed fetching, normalization, storage and
// cursor advancement.
package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/telemirror/telemirror/internal/logger"
	"github.com/telemirror/telemirror/internal/media"
	"github.com/telemirror/telemirror/internal/models"
	"github.com/telemirror/telemirror/internal/telegram"
)

// Options tunes a Service.
type Options struct {
	// FetchLimit caps how many messages one run requests per chat.
	FetchLimit int
	// DialogLimit caps how many dialogs discovery requests.
	DialogLimit int
	// Keywords is the chat title allow-list. A chat is selected when its
	// title contains any keyword, case-insensitively. Empty selects nothing.
	Keywords []string
	// InterChatDelay is the pause between consecutive chats.
	InterChatDelay time.Duration
}

// RunResult summarizes one engine invocation.
type RunResult struct {
	RunID          uuid.UUID
	ChatsSynced    int
	MessagesSynced int
	Duration       time.Duration
	Err            string // set on a run-level fatal error
}

// Service runs sync passes over the allow-listed chats.
type Service struct {
	client    SourceClient
	chats     ChatStore
	messages  MessageStore
	runs      RunStore
	media     media.Pipeline
	publisher EventPublisher // nil when NATS is not configured
	hub       Broadcaster    // nil when the websocket hub is disabled
	opts      Options
	log       *logger.Logger
}

// NewService creates a sync engine. publisher and hub may be nil.
func NewService(client SourceClient, chats ChatStore, messages MessageStore, runs RunStore, mediaPipeline media.Pipeline, publisher EventPublisher, hub Broadcaster, opts Options) *Service {
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = 50
	}
	if opts.DialogLimit <= 0 {
		opts.DialogLimit = 100
	}
	if mediaPipeline == nil {
		mediaPipeline = media.Noop{}
	}
	return &Service{
		client:    client,
		chats:     chats,
		messages:  messages,
		runs:      runs,
		media:     mediaPipeline,
		publisher: publisher,
		hub:       hub,
		opts:      opts,
		log:       logger.Get(),
	}
}

// Run executes one full sync pass and records it in the audit log.
//
// A fatal error (source unavailable, discovery failed) aborts the pass,
// marks the run failed and comes back in RunResult.Err; counts then
// reflect whatever completed before the abort. Per-chat errors never
// abort the pass. The returned error is reserved for failures of the
// audit recording itself.
func (s *Service) Run(ctx context.Context, mode Mode) (*RunResult, error) {
	started := time.Now()

	run, err := s.runs.Start(ctx, mode == ModeBackfill)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	result := &RunResult{RunID: run.ID}
	s.log.Info().
		Str("run_id", run.ID.String()).
		Str("mode", string(mode)).
		Msg("syncer: run started")
	s.broadcast("sync.start", map[string]any{"run_id": run.ID, "mode": mode})

	fatal := s.runChats(ctx, mode, run.ID, result)
	result.Duration = time.Since(started)

	status := models.RunStatusSuccess
	var errMsg *string
	if fatal != nil {
		status = models.RunStatusFailed
		result.Err = fatal.Error()
		errMsg = &result.Err
		s.log.Error().Err(fatal).Str("run_id", run.ID.String()).Msg("syncer: run failed")
	} else {
		s.log.Info().
			Str("run_id", run.ID.String()).
			Int("chats_synced", result.ChatsSynced).
			Int("messages_synced", result.MessagesSynced).
			Dur("duration", result.Duration).
			Msg("syncer: run finished")
	}

	if err := s.runs.Finish(ctx, run.ID, status, result.ChatsSynced, result.MessagesSynced, errMsg); err != nil {
		return result, fmt.Errorf("finish run: %w", err)
	}

	s.broadcast("sync.end", map[string]any{
		"run_id":          run.ID,
		"status":          status,
		"chats_synced":    result.ChatsSynced,
		"messages_synced": result.MessagesSynced,
		"duration_ms":     result.Duration.Milliseconds(),
	})
	return result, nil
}

// runChats discovers, filters and processes chats. A returned error is
// run-fatal; per-chat failures are absorbed here.
func (s *Service) runChats(ctx context.Context, mode Mode, runID uuid.UUID, result *RunResult) error {
	if status := s.client.GetStatus(); status != telegram.StatusReady {
		return fmt.Errorf("source not ready: %s", status)
	}

	dialogs, err := s.client.ListDialogs(ctx, s.opts.DialogLimit)
	if err != nil {
		return fmt.Errorf("list dialogs: %w", err)
	}

	targets := filterConversations(dialogs, s.opts.Keywords)
	s.log.Info().
		Int("dialogs", len(dialogs)).
		Int("selected", len(targets)).
		Msg("syncer: discovery complete")
	if len(targets) == 0 && len(s.opts.Keywords) == 0 {
		s.log.Warn().Msg("syncer: no keywords configured, no chats selected")
	}

	for i := range targets {
		conv := &targets[i]
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled: %w", err)
		}
		if i > 0 && s.opts.InterChatDelay > 0 {
			select {
			case <-time.After(s.opts.InterChatDelay):
			case <-ctx.Done():
				return fmt.Errorf("run cancelled: %w", ctx.Err())
			}
		}

		stored, err := s.syncChatSafe(ctx, mode, runID, conv)
		result.MessagesSynced += stored
		if err != nil {
			s.log.Error().Err(err).
				Str("chat_id", conv.ChatID()).
				Str("title", conv.Title).
				Int("stored_before_error", stored).
				Msg("syncer: chat failed, continuing")
			continue
		}
		result.ChatsSynced++
		s.broadcast("sync.chat", map[string]any{
			"run_id":   runID,
			"chat_id":  conv.ChatID(),
			"title":    conv.Title,
			"messages": stored,
		})
	}
	return nil
}

// syncChatSafe confines panics from a single chat to that chat.
func (s *Service) syncChatSafe(ctx context.Context, mode Mode, runID uuid.UUID, conv *telegram.Conversation) (stored int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while syncing chat: %v", r)
		}
	}()
	return s.syncChat(ctx, mode, runID, conv)
}

// syncChat processes one chat: upsert, window, fetch, store, advance.
// It returns how many messages were stored, also on error, so partial
// progress is counted.
func (s *Service) syncChat(ctx context.Context, mode Mode, runID uuid.UUID, conv *telegram.Conversation) (int, error) {
	chatID := conv.ChatID()
	chat := &models.Chat{
		ChatID: chatID,
		Title:  conv.Title,
		Kind:   conv.Kind,
	}
	if conv.Username != "" {
		u := conv.Username
		chat.Username = &u
	}
	if conv.MemberCount > 0 {
		n := conv.MemberCount
		chat.MemberCount = &n
	}
	if err := s.chats.Upsert(ctx, chat); err != nil {
		return 0, err
	}

	win := computeWindow(mode, chat.LastMessageID, chat.OldestMessageID, s.opts.FetchLimit)
	s.log.Debug().
		Str("chat_id", chatID).
		Int64("min_id", win.MinID).
		Int64("offset_id", win.OffsetID).
		Int("limit", win.Limit).
		Msg("syncer: fetching window")

	batch, err := s.client.GetHistory(ctx, conv, win.MinID, win.OffsetID, win.Limit)
	if err != nil {
		return 0, fmt.Errorf("get history: %w", err)
	}

	stored := 0
	var maxID, minID int64
	for i := range batch {
		msg := &batch[i]
		if msg.Text == "" && !msg.HasMedia() {
			continue
		}
		if maxID == 0 || msg.ID > maxID {
			maxID = msg.ID
		}
		if minID == 0 || msg.ID < minID {
			minID = msg.ID
		}

		rec := s.normalize(ctx, chatID, msg)
		if err := s.messages.Upsert(ctx, rec); err != nil {
			s.log.Error().Err(err).
				Str("chat_id", chatID).
				Int64("message_id", msg.ID).
				Msg("syncer: message store failed, skipping")
			continue
		}
		stored++
		s.publish(ctx, runID, rec)
	}

	if maxID == 0 {
		if err := s.chats.TouchSynced(ctx, chatID); err != nil {
			return stored, fmt.Errorf("touch synced: %w", err)
		}
		return stored, nil
	}
	if err := s.chats.AdvanceCursors(ctx, chatID, maxID, minID, mode == ModeBackfill); err != nil {
		return stored, fmt.Errorf("advance cursors: %w", err)
	}
	return stored, nil
}

// normalize converts a source message into its storage row, resolving
// the sender and uploading photo media when the pipeline is configured.
// Both steps are best-effort.
func (s *Service) normalize(ctx context.Context, chatID string, msg *telegram.Message) *models.Message {
	rec := &models.Message{
		ChatID:    chatID,
		MessageID: msg.ID,
		Text:      msg.Text,
		Timestamp: msg.Date,
		ReplyToID: msg.ReplyToID,
		Entities:  msg.Entities,
		Buttons:   msg.Buttons,
	}

	if msg.SenderID != nil {
		rec.SenderID = msg.SenderID
		sender, err := s.client.ResolveSender(ctx, *msg.SenderID)
		if err != nil {
			s.log.Debug().Err(err).
				Str("chat_id", chatID).
				Int64("sender_id", *msg.SenderID).
				Msg("syncer: sender unresolved")
		} else {
			name := sender.Name
			rec.SenderName = &name
		}
	}

	if msg.Media != nil {
		rec.HasMedia = true
		rec.MediaKind = msg.Media.Kind
		if msg.Media.Mime != "" {
			mime := msg.Media.Mime
			rec.MediaMime = &mime
		}
		if msg.Media.Kind == models.MediaKindPhoto && s.media.Configured() {
			data, ext, err := s.client.DownloadPhoto(ctx, msg.Media)
			if err != nil {
				s.log.Warn().Err(err).
					Str("chat_id", chatID).
					Int64("message_id", msg.ID).
					Msg("syncer: media download failed")
			} else {
				rec.MediaURL = s.media.Upload(ctx, data, chatID, msg.ID, ext)
			}
		}
	}
	return rec
}

// publish emits a stored-message event. Failures are logged only.
func (s *Service) publish(ctx context.Context, runID uuid.UUID, rec *models.Message) {
	if s.publisher == nil {
		return
	}
	event := MessageStoredEvent{
		RunID:     runID,
		ChatID:    rec.ChatID,
		MessageID: rec.MessageID,
		Timestamp: rec.Timestamp,
		HasMedia:  rec.HasMedia,
	}
	if err := s.publisher.PublishMessageStored(ctx, event); err != nil {
		s.log.Warn().Err(err).
			Str("chat_id", rec.ChatID).
			Int64("message_id", rec.MessageID).
			Msg("syncer: event publish failed")
	}
}

func (s *Service) broadcast(eventType string, data any) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(WSEvent{Type: eventType, Data: data})
}

// filterConversations selects syncable conversations whose title contains
// any keyword, case-insensitively, deduplicated by chat id.
func filterConversations(dialogs []telegram.Conversation, keywords []string) []telegram.Conversation {
	seen := make(map[string]bool)
	var out []telegram.Conversation
	for _, conv := range dialogs {
		if !conv.Kind.Syncable() {
			continue
		}
		if !titleMatches(conv.Title, keywords) {
			continue
		}
		id := conv.ChatID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, conv)
	}
	return out
}

func titleMatches(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
