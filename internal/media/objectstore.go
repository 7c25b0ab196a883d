package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/telemirror/telemirror/internal/logger"
)

// ObjectStore persists media into a NATS JetStream object store bucket
// and builds public URLs from a configured base.
type ObjectStore struct {
	store   jetstream.ObjectStore
	baseURL string
	log     *logger.Logger
}

// NewObjectStore creates the bucket if needed and returns the pipeline.
func NewObjectStore(ctx context.Context, nc *nats.Conn, bucket, publicBaseURL string) (*ObjectStore, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	store, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "mirrored telegram media",
	})
	if err != nil {
		return nil, fmt.Errorf("create object store %s: %w", bucket, err)
	}

	return &ObjectStore{
		store:   store,
		baseURL: strings.TrimSuffix(publicBaseURL, "/"),
		log:     logger.Get(),
	}, nil
}

// Configured always reports true for an initialized store.
func (s *ObjectStore) Configured() bool { return true }

// Upload writes the bytes under a content-addressed name and returns the
// public URL, or nil when the write fails.
func (s *ObjectStore) Upload(ctx context.Context, data []byte, chatID string, messageID int64, ext string) *string {
	if len(data) == 0 {
		return nil
	}

	name := objectName(data, chatID, messageID, ext)
	if _, err := s.store.PutBytes(ctx, name, data); err != nil {
		s.log.Warn().Err(err).
			Str("chat_id", chatID).
			Int64("message_id", messageID).
			Msg("media: object store upload failed")
		return nil
	}

	url := s.baseURL + "/" + name
	return &url
}

// objectName builds a stable content-addressed object name, so a retried
// upload of identical bytes lands on the same object.
func objectName(data []byte, chatID string, messageID int64, ext string) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s/%d-%s.%s", chatID, messageID, hex.EncodeToString(sum[:8]), ext)
}
