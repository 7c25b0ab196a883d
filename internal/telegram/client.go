// Package telegram provides the MTProto client wrapper used by the sync
// engine: dialog listing, history fetching, sender resolution and media
// download. Raw wire types never leave this package.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/celestix/gotgproto"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/telemirror/telemirror/internal/logger"
	"github.com/telemirror/telemirror/internal/models"
)

// Client wraps the protocol client and provides high-level operations.
type Client struct {
	manager     *Manager
	rateLimiter *RateLimiter
	log         *logger.Logger

	// best-effort sender cache, filled from dialog and history responses
	senders   map[int64]Sender
	sendersMu sync.RWMutex
}

// NewClient creates a telegram client wrapper using the Manager.
func NewClient(manager *Manager) *Client {
	return &Client{
		manager:     manager,
		rateLimiter: DefaultRateLimiter(),
		log:         logger.Get(),
		senders:     make(map[int64]Sender),
	}
}

// Close stops the client via the manager.
func (c *Client) Close() {
	if c.manager != nil {
		c.manager.Stop()
	}
}

// GetStatus returns the current status of the telegram client.
func (c *Client) GetStatus() Status {
	return c.manager.GetStatus()
}

// StartQR proxies the QR login flow to the manager.
func (c *Client) StartQR(ctx context.Context, onQRCode func(url string)) error {
	return c.manager.StartQR(ctx, onQRCode)
}

// IsQRInProgress reports whether a QR login flow is running.
func (c *Client) IsQRInProgress() bool {
	return c.manager.IsQRInProgress()
}

// CancelQR cancels any ongoing QR login flow.
func (c *Client) CancelQR() {
	c.manager.CancelQR()
}

// getProto returns the current protocol client if available.
func (c *Client) getProto() (*gotgproto.Client, error) {
	proto := c.manager.GetClient()
	if proto == nil {
		return nil, ErrNotAuthorized
	}
	return proto, nil
}

// API returns the raw tg.Client for direct API calls.
func (c *Client) API() (*tg.Client, error) {
	proto, err := c.getProto()
	if err != nil {
		return nil, err
	}
	return proto.API(), nil
}

// ListDialogs returns the conversations visible to the account,
// in the order the source reports them. Private 1:1 dialogs are not
// included; only group-like peers are returned.
func (c *Client) ListDialogs(ctx context.Context, limit int) ([]Conversation, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	api, err := c.API()
	if err != nil {
		return nil, err
	}

	c.log.Debug().Int("limit", limit).Msg("telegram: listing dialogs")
	result, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      limit,
	})
	if err != nil {
		if wait := c.checkFloodWait(err); wait > 0 {
			c.log.Warn().Int("wait_seconds", wait).Msg("telegram: FLOOD_WAIT on dialogs, updating rate limiter")
			c.rateLimiter.SetFloodWait(wait)
		}
		return nil, fmt.Errorf("get dialogs: %w", err)
	}

	var chats []tg.ChatClass
	var users []tg.UserClass
	switch d := result.(type) {
	case *tg.MessagesDialogs:
		chats, users = d.Chats, d.Users
	case *tg.MessagesDialogsSlice:
		chats, users = d.Chats, d.Users
	default:
		return nil, fmt.Errorf("unexpected dialogs response %T", result)
	}

	c.cacheSenders(users)

	var out []Conversation
	for _, chat := range chats {
		if conv := parseConversation(chat); conv != nil {
			out = append(out, *conv)
		}
	}
	return out, nil
}

// GetHistory fetches up to limit messages from a conversation.
// Exactly one of minID (strictly newer than, incremental) or offsetID
// (strictly older than, backfill) should be non-zero; with both zero the
// newest messages are returned.
func (c *Client) GetHistory(ctx context.Context, conv *Conversation, minID, offsetID int64, limit int) ([]Message, error) {
	if limit > 100 {
		limit = 100 // telegram api limit
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	api, err := c.API()
	if err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("chat_id", conv.ChatID()).
		Int64("min_id", minID).
		Int64("offset_id", offsetID).
		Int("limit", limit).
		Msg("telegram: calling MessagesGetHistory")

	history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     conv.inputPeer(),
		MinID:    int(minID),
		OffsetID: int(offsetID),
		Limit:    limit,
	})
	if err != nil {
		if wait := c.checkFloodWait(err); wait > 0 {
			c.log.Warn().Int("wait_seconds", wait).Msg("telegram: FLOOD_WAIT on history, updating rate limiter")
			c.rateLimiter.SetFloodWait(wait)
		}
		return nil, fmt.Errorf("get history: %w", err)
	}

	return c.extractMessages(history)
}

// ResolveSender returns the cached sender for an id. The cache is filled
// from dialog and history responses; a miss is an error the caller is
// expected to log and discard.
func (c *Client) ResolveSender(_ context.Context, senderID int64) (*Sender, error) {
	c.sendersMu.RLock()
	defer c.sendersMu.RUnlock()

	s, ok := c.senders[senderID]
	if !ok {
		return nil, fmt.Errorf("sender %d not seen in any response", senderID)
	}
	return &s, nil
}

// DownloadPhoto downloads the full-size photo behind a media reference.
// It returns the raw bytes and a file extension.
func (c *Client) DownloadPhoto(ctx context.Context, ref *MediaRef) ([]byte, string, error) {
	if ref == nil || ref.photo == nil {
		return nil, "", fmt.Errorf("media reference is not a photo")
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	api, err := c.API()
	if err != nil {
		return nil, "", err
	}

	thumb := largestPhotoSize(ref.photo.Sizes)
	if thumb == "" {
		return nil, "", fmt.Errorf("photo has no downloadable sizes")
	}

	loc := &tg.InputPhotoFileLocation{
		ID:            ref.photo.ID,
		AccessHash:    ref.photo.AccessHash,
		FileReference: ref.photo.FileReference,
		ThumbSize:     thumb,
	}

	var buf bytes.Buffer
	if _, err := downloader.NewDownloader().Download(api, loc).Stream(ctx, &buf); err != nil {
		return nil, "", fmt.Errorf("download photo: %w", err)
	}

	return buf.Bytes(), "jpg", nil
}

// extractMessages converts a history response to parsed messages and
// feeds the sender cache from the attached users.
func (c *Client) extractMessages(messagesClass tg.MessagesMessagesClass) ([]Message, error) {
	var raw []tg.MessageClass
	var users []tg.UserClass

	switch h := messagesClass.(type) {
	case *tg.MessagesChannelMessages:
		raw, users = h.Messages, h.Users
	case *tg.MessagesMessages:
		raw, users = h.Messages, h.Users
	case *tg.MessagesMessagesSlice:
		raw, users = h.Messages, h.Users
	default:
		return nil, fmt.Errorf("unexpected history response %T", messagesClass)
	}

	c.cacheSenders(users)

	var messages []Message
	for _, msg := range raw {
		if m := parseMessage(msg); m != nil {
			messages = append(messages, *m)
		}
	}
	return messages, nil
}

// cacheSenders remembers user display names for later resolution.
func (c *Client) cacheSenders(users []tg.UserClass) {
	if len(users) == 0 {
		return
	}
	c.sendersMu.Lock()
	defer c.sendersMu.Unlock()
	for _, u := range users {
		user, ok := u.(*tg.User)
		if !ok {
			continue
		}
		name := strings.TrimSpace(user.FirstName + " " + user.LastName)
		if name == "" {
			name = user.Username
		}
		if name == "" {
			continue
		}
		c.senders[user.ID] = Sender{ID: user.ID, Name: name}
	}
}

// parseConversation converts a chat class into a Conversation,
// returning nil for peers the engine cannot mirror.
func parseConversation(chat tg.ChatClass) *Conversation {
	switch ch := chat.(type) {
	case *tg.Chat:
		if ch.Deactivated {
			return nil // migrated to a supergroup, the channel peer will be listed too
		}
		return &Conversation{
			ID:          ch.ID,
			Kind:        models.ChatKindGroup,
			Title:       ch.Title,
			MemberCount: ch.ParticipantsCount,
			legacy:      true,
		}
	case *tg.Channel:
		kind := models.ChatKindSupergroup
		if ch.Broadcast {
			kind = models.ChatKindChannel
		}
		return &Conversation{
			ID:          ch.ID,
			AccessHash:  ch.AccessHash,
			Kind:        kind,
			Title:       ch.Title,
			Username:    ch.Username,
			MemberCount: ch.ParticipantsCount,
		}
	default:
		return nil
	}
}

// parseMessage converts a single wire message into the normalized shape.
// Service messages and empty placeholders yield nil.
func parseMessage(msg tg.MessageClass) *Message {
	m, ok := msg.(*tg.Message)
	if !ok {
		return nil
	}

	out := &Message{
		ID:       int64(m.ID),
		Text:     m.Message,
		Date:     time.Unix(int64(m.Date), 0).UTC(),
		Entities: parseEntities(m.Entities),
		Buttons:  parseButtons(m.ReplyMarkup),
		Media:    parseMedia(m.Media),
	}

	if peer, ok := m.FromID.(*tg.PeerUser); ok {
		id := peer.UserID
		out.SenderID = &id
	}

	if header, ok := m.ReplyTo.(*tg.MessageReplyHeader); ok && header.ReplyToMsgID != 0 {
		id := int64(header.ReplyToMsgID)
		out.ReplyToID = &id
	}

	return out
}

// parseMedia classifies message media into the closed variant set
// {photo, document-with-mime, other}.
func parseMedia(media tg.MessageMediaClass) *MediaRef {
	switch m := media.(type) {
	case nil:
		return nil
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return nil
		}
		return &MediaRef{Kind: models.MediaKindPhoto, photo: photo}
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return nil
		}
		return &MediaRef{Kind: models.MediaKindDocument, Mime: doc.MimeType}
	case *tg.MessageMediaEmpty:
		return nil
	default:
		return &MediaRef{Kind: models.MediaKindOther}
	}
}

// parseEntities extracts link, hashtag and mention spans in source order.
func parseEntities(entities []tg.MessageEntityClass) []models.Entity {
	var out []models.Entity
	for _, e := range entities {
		switch ent := e.(type) {
		case *tg.MessageEntityURL:
			out = append(out, models.Entity{Type: "url", Offset: ent.Offset, Length: ent.Length})
		case *tg.MessageEntityTextURL:
			url := ent.URL
			out = append(out, models.Entity{Type: "text_url", Offset: ent.Offset, Length: ent.Length, URL: &url})
		case *tg.MessageEntityHashtag:
			out = append(out, models.Entity{Type: "hashtag", Offset: ent.Offset, Length: ent.Length})
		case *tg.MessageEntityMention:
			out = append(out, models.Entity{Type: "mention", Offset: ent.Offset, Length: ent.Length})
		}
	}
	return out
}

// parseButtons extracts inline URL buttons in source order.
func parseButtons(markup tg.ReplyMarkupClass) []models.Button {
	inline, ok := markup.(*tg.ReplyInlineMarkup)
	if !ok {
		return nil
	}
	var out []models.Button
	for _, row := range inline.Rows {
		for _, b := range row.Buttons {
			if btn, ok := b.(*tg.KeyboardButtonURL); ok {
				out = append(out, models.Button{Label: btn.Text, URL: btn.URL})
			}
		}
	}
	return out
}

// largestPhotoSize picks the thumb type of the biggest available size.
func largestPhotoSize(sizes []tg.PhotoSizeClass) string {
	var best string
	var bestArea int
	for _, s := range sizes {
		switch sz := s.(type) {
		case *tg.PhotoSize:
			if area := sz.W * sz.H; area >= bestArea {
				bestArea = area
				best = sz.Type
			}
		case *tg.PhotoSizeProgressive:
			if area := sz.W * sz.H; area >= bestArea {
				bestArea = area
				best = sz.Type
			}
		}
	}
	return best
}

// checkFloodWait returns the wait seconds of a FLOOD_WAIT error, or 0.
func (c *Client) checkFloodWait(err error) int {
	if err == nil {
		return 0
	}
	str := err.Error()
	if !strings.Contains(str, "FLOOD_WAIT_") {
		return 0
	}
	var seconds int
	parts := strings.Split(str, "FLOOD_WAIT_")
	if len(parts) > 1 {
		_, _ = fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &seconds)
	}
	return seconds
}
