package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemirror/telemirror/internal/models"
	"github.com/telemirror/telemirror/internal/telegram"
)

type historyCall struct {
	chatID   string
	minID    int64
	offsetID int64
	limit    int
}

type fakeClient struct {
	status     telegram.Status
	dialogs    []telegram.Conversation
	history    map[string][]telegram.Message
	historyErr map[string]error
	senders    map[int64]string
	photoErr   error
	calls      []historyCall
}

func (f *fakeClient) GetStatus() telegram.Status {
	if f.status == "" {
		return telegram.StatusReady
	}
	return f.status
}

func (f *fakeClient) ListDialogs(context.Context, int) ([]telegram.Conversation, error) {
	return f.dialogs, nil
}

func (f *fakeClient) GetHistory(_ context.Context, conv *telegram.Conversation, minID, offsetID int64, limit int) ([]telegram.Message, error) {
	id := conv.ChatID()
	f.calls = append(f.calls, historyCall{chatID: id, minID: minID, offsetID: offsetID, limit: limit})
	if err := f.historyErr[id]; err != nil {
		return nil, err
	}
	return f.history[id], nil
}

func (f *fakeClient) ResolveSender(_ context.Context, senderID int64) (*telegram.Sender, error) {
	name, ok := f.senders[senderID]
	if !ok {
		return nil, errors.New("sender not cached")
	}
	return &telegram.Sender{ID: senderID, Name: name}, nil
}

func (f *fakeClient) DownloadPhoto(context.Context, *telegram.MediaRef) ([]byte, string, error) {
	if f.photoErr != nil {
		return nil, "", f.photoErr
	}
	return []byte("jpeg-bytes"), "jpg", nil
}

// fakePipeline reports itself configured so photo downloads actually run.
type fakePipeline struct {
	url     *string
	uploads int
}

func (f *fakePipeline) Configured() bool { return true }

func (f *fakePipeline) Upload(context.Context, []byte, string, int64, string) *string {
	f.uploads++
	return f.url
}

// fakeChatStore mirrors the SQL ratchet semantics in memory.
type fakeChatStore struct {
	chats   map[string]models.Chat
	touched []string
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{chats: make(map[string]models.Chat)}
}

func (f *fakeChatStore) Upsert(_ context.Context, c *models.Chat) error {
	if existing, ok := f.chats[c.ChatID]; ok {
		c.LastMessageID = existing.LastMessageID
		c.OldestMessageID = existing.OldestMessageID
	}
	f.chats[c.ChatID] = *c
	return nil
}

func (f *fakeChatStore) AdvanceCursors(_ context.Context, chatID string, maxID, minID int64, establishOldest bool) error {
	c := f.chats[chatID]
	if maxID > c.LastMessageID {
		c.LastMessageID = maxID
	}
	if establishOldest {
		if c.OldestMessageID == 0 || minID < c.OldestMessageID {
			c.OldestMessageID = minID
		}
	}
	now := time.Now()
	c.LastSyncedAt = &now
	f.chats[chatID] = c
	return nil
}

func (f *fakeChatStore) TouchSynced(_ context.Context, chatID string) error {
	f.touched = append(f.touched, chatID)
	return nil
}

type fakeMessageStore struct {
	stored  []models.Message
	failIDs map[int64]bool
}

// panickyMessageStore blows up for selected chats, mimicking a corrupted row
// or driver bug surfacing mid-batch.
type panickyMessageStore struct {
	fakeMessageStore
	panicChats map[string]bool
}

func (p *panickyMessageStore) Upsert(ctx context.Context, m *models.Message) error {
	if p.panicChats[m.ChatID] {
		panic("message store corrupted")
	}
	return p.fakeMessageStore.Upsert(ctx, m)
}

func (f *fakeMessageStore) Upsert(_ context.Context, m *models.Message) error {
	if f.failIDs[m.MessageID] {
		return errors.New("store failed")
	}
	f.stored = append(f.stored, *m)
	return nil
}

type finishRecord struct {
	status   models.RunStatus
	chats    int
	messages int
	errMsg   *string
}

type fakeRunStore struct {
	startErr error
	finished *finishRecord
}

func (f *fakeRunStore) Start(_ context.Context, backfill bool) (*models.SyncRun, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &models.SyncRun{ID: uuid.New(), StartedAt: time.Now(), Status: models.RunStatusRunning, Backfill: backfill}, nil
}

func (f *fakeRunStore) Finish(_ context.Context, _ uuid.UUID, status models.RunStatus, chats, messages int, errMsg *string) error {
	f.finished = &finishRecord{status: status, chats: chats, messages: messages, errMsg: errMsg}
	return nil
}

type fakePublisher struct {
	events []MessageStoredEvent
	err    error
}

func (f *fakePublisher) PublishMessageStored(_ context.Context, event MessageStoredEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func conversation(id int64, kind models.ChatKind, title string) telegram.Conversation {
	return telegram.Conversation{ID: id, Kind: kind, Title: title}
}

func textMessage(id int64, text string) telegram.Message {
	return telegram.Message{ID: id, Text: text, Date: time.Unix(1700000000+id, 0).UTC()}
}

func photoMessage(id int64) telegram.Message {
	return telegram.Message{
		ID:    id,
		Date:  time.Unix(1700000000+id, 0).UTC(),
		Media: &telegram.MediaRef{Kind: models.MediaKindPhoto},
	}
}

func newTestService(client *fakeClient, chats *fakeChatStore, messages *fakeMessageStore, runs *fakeRunStore, publisher EventPublisher) *Service {
	return NewService(client, chats, messages, runs, nil, publisher, nil, Options{
		FetchLimit: 50,
		Keywords:   []string{"jobs"},
	})
}

func TestServiceRun_IncrementalAdvancesHighWatermark(t *testing.T) {
	chatID := "-1001"
	client := &fakeClient{
		dialogs: []telegram.Conversation{conversation(1, models.ChatKindSupergroup, "Jobs Berlin")},
		history: map[string][]telegram.Message{
			chatID: {textMessage(12, "c"), textMessage(11, "b"), textMessage(10, "a")},
		},
	}
	chats := newFakeChatStore()
	chats.chats[chatID] = models.Chat{ChatID: chatID, LastMessageID: 9}
	messages := &fakeMessageStore{}
	runs := &fakeRunStore{}
	publisher := &fakePublisher{}

	svc := newTestService(client, chats, messages, runs, publisher)
	result, err := svc.Run(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ChatsSynced)
	assert.Equal(t, 3, result.MessagesSynced)
	assert.Empty(t, result.Err)

	require.Len(t, client.calls, 1)
	assert.Equal(t, int64(9), client.calls[0].minID)
	assert.Zero(t, client.calls[0].offsetID)

	stored := chats.chats[chatID]
	assert.Equal(t, int64(12), stored.LastMessageID)
	assert.Zero(t, stored.OldestMessageID, "incremental must not establish the low watermark")

	require.NotNil(t, runs.finished)
	assert.Equal(t, models.RunStatusSuccess, runs.finished.status)
	assert.Equal(t, 3, runs.finished.messages)

	require.Len(t, publisher.events, 3)
	assert.Equal(t, result.RunID, publisher.events[0].RunID)
	assert.Equal(t, chatID, publisher.events[0].ChatID)
}

func TestServiceRun_BackfillEstablishesLowWatermark(t *testing.T) {
	chatID := "-1001"
	client := &fakeClient{
		dialogs: []telegram.Conversation{conversation(1, models.ChatKindSupergroup, "Jobs Berlin")},
		history: map[string][]telegram.Message{
			chatID: {textMessage(9, "c"), textMessage(8, "b"), textMessage(7, "a")},
		},
	}
	chats := newFakeChatStore()
	chats.chats[chatID] = models.Chat{ChatID: chatID, LastMessageID: 20, OldestMessageID: 10}
	messages := &fakeMessageStore{}
	runs := &fakeRunStore{}

	svc := newTestService(client, chats, messages, runs, nil)
	result, err := svc.Run(context.Background(), ModeBackfill)
	require.NoError(t, err)

	assert.Equal(t, 3, result.MessagesSynced)
	require.Len(t, client.calls, 1)
	assert.Equal(t, int64(10), client.calls[0].offsetID)
	assert.Zero(t, client.calls[0].minID)

	stored := chats.chats[chatID]
	assert.Equal(t, int64(7), stored.OldestMessageID)
	assert.Equal(t, int64(20), stored.LastMessageID, "backfill must not regress the high watermark")
}

func TestServiceRun_EmptyBatchTouchesWithoutCursorMovement(t *testing.T) {
	chatID := "-1001"
	client := &fakeClient{
		dialogs: []telegram.Conversation{conversation(1, models.ChatKindSupergroup, "Jobs Berlin")},
		history: map[string][]telegram.Message{chatID: {}},
	}
	chats := newFakeChatStore()
	chats.chats[chatID] = models.Chat{ChatID: chatID, LastMessageID: 42}
	runs := &fakeRunStore{}

	svc := newTestService(client, chats, &fakeMessageStore{}, runs, nil)
	result, err := svc.Run(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ChatsSynced)
	assert.Zero(t, result.MessagesSynced)
	assert.Equal(t, []string{chatID}, chats.touched)
	assert.Equal(t, int64(42), chats.chats[chatID].LastMessageID)
}

func TestServiceRun_EmptyMessagesNeverStoredNorCounted(t *testing.T) {
	chatID := "-1001"
	client := &fakeClient{
		dialogs: []telegram.Conversation{conversation(1, models.ChatKindSupergroup, "Jobs Berlin")},
		history: map[string][]telegram.Message{
			chatID: {
				textMessage(5, "real content"),
				{ID: 6, Date: time.Now()}, // service message, no text, no media
			},
		},
	}
	chats := newFakeChatStore()
	messages := &fakeMessageStore{}

	svc := newTestService(client, chats, messages, &fakeRunStore{}, nil)
	result, err := svc.Run(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, result.MessagesSynced)
	require.Len(t, messages.stored, 1)
	assert.Equal(t, int64(5), messages.stored[0].MessageID)
	// the skipped message must not drag the cursor past the stored one
	assert.Equal(t, int64(5), chats.chats[chatID].LastMessageID)
}

func TestServiceRun_ChatFailureDoesNotBlockOthers(t *testing.T) {
	brokenID := "-1001"
	healthyID := "-1002"
	client := &fakeClient{
		dialogs: []telegram.Conversation{
			conversation(1, models.ChatKindSupergroup, "Jobs Berlin"),
			conversation(2, models.ChatKindSupergroup, "Jobs Munich"),
		},
		historyErr: map[string]error{brokenID: errors.New("CHANNEL_PRIVATE")},
		history: map[string][]telegram.Message{
			healthyID: {textMessage(3, "hi")},
		},
	}
	runs := &fakeRunStore{}

	svc := newTestService(client, newFakeChatStore(), &fakeMessageStore{}, runs, nil)
	result, err := svc.Run(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ChatsSynced)
	assert.Equal(t, 1, result.MessagesSynced)
	assert.Empty(t, result.Err)
	assert.Equal(t, models.RunStatusSuccess, runs.finished.status)
}

func TestServiceRun_SourceNotReadyIsFatal(t *testing.T) {
	client := &fakeClient{status: telegram.StatusUnauthorized}
	runs := &fakeRunStore{}

	svc := newTestService(client, newFakeChatStore(), &fakeMessageStore{}, runs, nil)
	result, err := svc.Run(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Err)
	require.NotNil(t, runs.finished)
	assert.Equal(t, models.RunStatusFailed, runs.finished.status)
	require.NotNil(t, runs.finished.errMsg)
}

func TestServiceRun_FilterSkipsPrivateAndUnmatched(t *testing.T) {
	client := &fakeClient{
		dialogs: []telegram.Conversation{
			conversation(1, models.ChatKindSupergroup, "JOBS Berlin"), // case-insensitive match
			conversation(2, models.ChatKindSupergroup, "Random chatter"),
			conversation(3, models.ChatKindPrivate, "jobs dm"),
		},
		history: map[string][]telegram.Message{"-1001": {textMessage(1, "x")}},
	}

	svc := newTestService(client, newFakeChatStore(), &fakeMessageStore{}, &fakeRunStore{}, nil)
	result, err := svc.Run(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ChatsSynced)
	require.Len(t, client.calls, 1)
	assert.Equal(t, "-1001", client.calls[0].chatID)
}

func TestServiceRun_StoreFailureSkipsMessageOnly(t *testing.T) {
	chatID := "-1001"
	client := &fakeClient{
		dialogs: []telegram.Conversation{conversation(1, models.ChatKindSupergroup, "Jobs Berlin")},
		history: map[string][]telegram.Message{
			chatID: {textMessage(2, "ok"), textMessage(1, "broken")},
		},
	}
	messages := &fakeMessageStore{failIDs: map[int64]bool{1: true}}

	svc := newTestService(client, newFakeChatStore(), messages, &fakeRunStore{}, nil)
	result, err := svc.Run(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, result.MessagesSynced)
	assert.Equal(t, 1, result.ChatsSynced)
}

func TestServiceRun_PublisherFailureIsBestEffort(t *testing.T) {
	chatID := "-1001"
	client := &fakeClient{
		dialogs: []telegram.Conversation{conversation(1, models.ChatKindSupergroup, "Jobs Berlin")},
		history: map[string][]telegram.Message{chatID: {textMessage(1, "x")}},
	}

	svc := newTestService(client, newFakeChatStore(), &fakeMessageStore{}, &fakeRunStore{}, &fakePublisher{err: errors.New("nats down")})
	result, err := svc.Run(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, result.MessagesSynced)
	assert.Empty(t, result.Err)
}

func TestServiceNormalize_SenderAndMedia(t *testing.T) {
	client := &fakeClient{senders: map[int64]string{7: "Alice"}}
	svc := newTestService(client, newFakeChatStore(), &fakeMessageStore{}, &fakeRunStore{}, nil)

	senderID := int64(7)
	rec := svc.normalize(context.Background(), "-1001", &telegram.Message{
		ID:       3,
		SenderID: &senderID,
		Text:     "hello",
		Date:     time.Unix(1700000000, 0),
		Media:    &telegram.MediaRef{Kind: models.MediaKindDocument, Mime: "application/pdf"},
	})

	require.NotNil(t, rec.SenderName)
	assert.Equal(t, "Alice", *rec.SenderName)
	assert.True(t, rec.HasMedia)
	assert.Equal(t, models.MediaKindDocument, rec.MediaKind)
	require.NotNil(t, rec.MediaMime)
	assert.Equal(t, "application/pdf", *rec.MediaMime)
	assert.Nil(t, rec.MediaURL, "documents are never downloaded")
}

func TestServiceNormalize_UnresolvedSenderKeepsID(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client, newFakeChatStore(), &fakeMessageStore{}, &fakeRunStore{}, nil)

	senderID := int64(99)
	rec := svc.normalize(context.Background(), "-1001", &telegram.Message{
		ID: 1, SenderID: &senderID, Text: "x", Date: time.Now(),
	})

	require.NotNil(t, rec.SenderID)
	assert.Equal(t, int64(99), *rec.SenderID)
	assert.Nil(t, rec.SenderName)
}

func TestServiceRun_MediaDownloadFailureDegrades(t *testing.T) {
	chatID := "-1001"
	client := &fakeClient{
		dialogs:  []telegram.Conversation{conversation(1, models.ChatKindSupergroup, "Jobs Berlin")},
		history:  map[string][]telegram.Message{chatID: {photoMessage(4)}},
		photoErr: errors.New("FILE_REFERENCE_EXPIRED"),
	}
	pipeline := &fakePipeline{}
	messages := &fakeMessageStore{}
	runs := &fakeRunStore{}

	svc := NewService(client, newFakeChatStore(), messages, runs, pipeline, nil, nil, Options{
		FetchLimit: 50,
		Keywords:   []string{"jobs"},
	})
	result, err := svc.Run(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ChatsSynced)
	assert.Equal(t, 1, result.MessagesSynced)
	require.Len(t, messages.stored, 1)
	assert.True(t, messages.stored[0].HasMedia)
	assert.Nil(t, messages.stored[0].MediaURL, "failed download must leave the URL empty")
	assert.Zero(t, pipeline.uploads, "nothing to upload without bytes")
	require.NotNil(t, runs.finished)
	assert.Equal(t, models.RunStatusSuccess, runs.finished.status)
}

func TestServiceRun_MediaUploadSetsURL(t *testing.T) {
	chatID := "-1001"
	url := "https://media.example/abc.jpg"
	client := &fakeClient{
		dialogs: []telegram.Conversation{conversation(1, models.ChatKindSupergroup, "Jobs Berlin")},
		history: map[string][]telegram.Message{chatID: {photoMessage(4)}},
	}
	pipeline := &fakePipeline{url: &url}
	messages := &fakeMessageStore{}

	svc := NewService(client, newFakeChatStore(), messages, &fakeRunStore{}, pipeline, nil, nil, Options{
		FetchLimit: 50,
		Keywords:   []string{"jobs"},
	})
	_, err := svc.Run(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, pipeline.uploads)
	require.Len(t, messages.stored, 1)
	require.NotNil(t, messages.stored[0].MediaURL)
	assert.Equal(t, url, *messages.stored[0].MediaURL)
}

func TestServiceRun_PanicInOneChatIsConfined(t *testing.T) {
	brokenID := "-1001"
	healthyID := "-1002"
	client := &fakeClient{
		dialogs: []telegram.Conversation{
			conversation(1, models.ChatKindSupergroup, "Jobs Berlin"),
			conversation(2, models.ChatKindSupergroup, "Jobs Munich"),
		},
		history: map[string][]telegram.Message{
			brokenID:  {textMessage(5, "boom")},
			healthyID: {textMessage(3, "hi")},
		},
	}
	messages := &panickyMessageStore{panicChats: map[string]bool{brokenID: true}}
	runs := &fakeRunStore{}

	svc := NewService(client, newFakeChatStore(), messages, runs, nil, nil, nil, Options{
		FetchLimit: 50,
		Keywords:   []string{"jobs"},
	})
	result, err := svc.Run(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ChatsSynced)
	assert.Equal(t, 1, result.MessagesSynced)
	assert.Empty(t, result.Err)
	require.Len(t, messages.stored, 1)
	assert.Equal(t, healthyID, messages.stored[0].ChatID)
	require.NotNil(t, runs.finished)
	assert.Equal(t, models.RunStatusSuccess, runs.finished.status)
}
