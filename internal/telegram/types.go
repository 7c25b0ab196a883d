package telegram

import (
	"fmt"
	"time"

	"github.com/gotd/td/tg"

	"github.com/telemirror/telemirror/internal/models"
)

// Conversation represents a dialog visible to the authenticated account.
type Conversation struct {
	ID          int64           // source-assigned numeric id
	AccessHash  int64           // access hash for api calls (channels only)
	Kind        models.ChatKind // group, supergroup, channel or private
	Title       string
	Username    string // without @, empty if none
	MemberCount int    // 0 when the source did not report it

	legacy bool // basic group (tg.Chat), addressed without access hash
}

// ChatID returns the stable opaque identifier used as the storage key.
// Channels and supergroups render as "-100<id>", basic groups as "-<id>",
// matching the convention the rest of the ecosystem uses for these peers.
func (c *Conversation) ChatID() string {
	if c.legacy {
		return fmt.Sprintf("-%d", c.ID)
	}
	return fmt.Sprintf("-100%d", c.ID)
}

// inputPeer builds the API peer for history requests.
func (c *Conversation) inputPeer() tg.InputPeerClass {
	if c.legacy {
		return &tg.InputPeerChat{ChatID: c.ID}
	}
	return &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash}
}

// Sender is the resolved author of a message.
type Sender struct {
	ID   int64
	Name string
}

// MediaRef is a downloadable reference to message media, classified at
// ingestion. The raw source shape never leaves this package.
type MediaRef struct {
	Kind models.MediaKind
	Mime string // set for documents

	photo *tg.Photo // set for photos, used by DownloadPhoto
}

// Message is a parsed source message, normalized from the wire format.
type Message struct {
	ID        int64
	SenderID  *int64
	Text      string
	Date      time.Time
	ReplyToID *int64
	Entities  []models.Entity
	Buttons   []models.Button
	Media     *MediaRef // nil when the message carries no media
}

// HasMedia reports whether the message carries any media.
func (m *Message) HasMedia() bool {
	return m.Media != nil
}
