package telegram

import (
	"context"
	"fmt"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"gorm.io/gorm"

	"github.com/telemirror/telemirror/internal/config"
)

// NewPersistentClient creates a Telegram client backed by database session
// storage. When TG_SESSION_STRING is set it seeds the session from that
// string instead, which is how fresh deployments bootstrap.
func NewPersistentClient(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error) {
	var sessionConstructor sessionMaker.SessionConstructor
	if cfg.TGSessionStr != "" {
		sessionConstructor = sessionMaker.StringSession(cfg.TGSessionStr)
	} else {
		sessionConstructor = sessionMaker.SqlSession(db.Dialector)
	}

	client, err := gotgproto.NewClient(
		cfg.TGApiID,
		cfg.TGApiHash,
		gotgproto.ClientTypePhone(""), // empty = use stored session
		&gotgproto.ClientOpts{
			Session:          sessionConstructor,
			DisableCopyright: true,
			InMemory:         false,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create telegram client: %w", err)
	}

	return client, nil
}
