package syncer

// Mode selects the direction a run moves a chat's watermarks.
type Mode string

// Run modes.
const (
	// ModeIncremental catches up to now: only messages newer than the
	// stored high-water mark are requested.
	ModeIncremental Mode = "incremental"
	// ModeBackfill walks history backward: only messages older than the
	// stored low-water mark are requested.
	ModeBackfill Mode = "backfill"
)

// Window describes one fetch request against the source.
// At most one of MinID (strictly newer than) and OffsetID (strictly older
// than) is set; with both zero the newest Limit messages are returned.
type Window struct {
	MinID    int64
	OffsetID int64
	Limit    int
}

// computeWindow decides the request window from the chat's stored cursors
// and the run mode.
//
// Incremental runs only ever look above last_message_id. Backfill runs
// continue below oldest_message_id once it exists; before that they page
// down from last_message_id+1 (re-reading the newest page is fine, writes
// are idempotent), or simply take the newest page on a chat never seen.
func computeWindow(mode Mode, lastID, oldestID int64, limit int) Window {
	w := Window{Limit: limit}

	if mode == ModeBackfill {
		switch {
		case oldestID > 0:
			w.OffsetID = oldestID
		case lastID > 0:
			w.OffsetID = lastID + 1
		}
		return w
	}

	if lastID > 0 {
		w.MinID = lastID
	}
	return w
}
