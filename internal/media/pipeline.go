// Package media offloads downloaded message media to object storage.
package media

import "context"

// Pipeline uploads raw media bytes and returns a public URL.
// Upload returns nil on any failure; errors never reach the caller,
// a missing URL is the degraded result.
type Pipeline interface {
	Configured() bool
	Upload(ctx context.Context, data []byte, chatID string, messageID int64, ext string) *string
}

// Noop is the pipeline used when object storage is not configured.
type Noop struct{}

// Configured always reports false.
func (Noop) Configured() bool { return false }

// Upload always returns nil.
func (Noop) Upload(context.Context, []byte, string, int64, string) *string { return nil }
