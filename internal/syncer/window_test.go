package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeWindow(t *testing.T) {
	tests := []struct {
		name     string
		mode     Mode
		lastID   int64
		oldestID int64
		want     Window
	}{
		{
			name: "incremental new chat takes newest page",
			mode: ModeIncremental,
			want: Window{Limit: 50},
		},
		{
			name:   "incremental known chat requests above last id",
			mode:   ModeIncremental,
			lastID: 120, oldestID: 40,
			want: Window{MinID: 120, Limit: 50},
		},
		{
			name: "backfill new chat takes newest page",
			mode: ModeBackfill,
			want: Window{Limit: 50},
		},
		{
			name:   "backfill without oldest pages down from last id",
			mode:   ModeBackfill,
			lastID: 120,
			want:   Window{OffsetID: 121, Limit: 50},
		},
		{
			name:   "backfill continues below oldest id",
			mode:   ModeBackfill,
			lastID: 120, oldestID: 40,
			want: Window{OffsetID: 40, Limit: 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeWindow(tt.mode, tt.lastID, tt.oldestID, 50)
			assert.Equal(t, tt.want, got)
		})
	}
}
