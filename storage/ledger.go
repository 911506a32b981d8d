package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"channelSummarize/core"
)

// Ledger is the sole source of truth for which videos already completed
// summarization. It is loaded once per run and rewritten in full on every
// update, so a reader never observes a half-updated entry.
type Ledger struct {
	path    string
	entries []core.LedgerEntry
	done    map[string]bool
}

// LoadLedger reads the ledger file and reduces it to the completed set.
// A missing file starts an empty ledger. Entries that are malformed or not
// flagged completed are tolerated and excluded from the skip-set; a file
// that is not a JSON array at all is a corrupt-state error.
func LoadLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path, done: make(map[string]bool)}

	var raw []json.RawMessage
	if err := core.ReadJSON(path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	for _, msg := range raw {
		var entry core.LedgerEntry
		if err := json.Unmarshal(msg, &entry); err != nil || entry.VideoID == "" {
			continue
		}
		l.entries = append(l.entries, entry)
		if entry.SummaryCompleted {
			l.done[entry.VideoID] = true
		}
	}
	return l, nil
}

// IsDone reports whether videoID completed summarization in a past run.
func (l *Ledger) IsDone(videoID string) bool {
	return l.done[videoID]
}

// MarkDone appends a completion entry and atomically rewrites the ledger.
// If the write fails the in-memory state is rolled back so the video is
// retried on the next run.
func (l *Ledger) MarkDone(videoID string) error {
	entry := core.LedgerEntry{
		VideoID:          videoID,
		SummaryCompleted: true,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}
	l.entries = append(l.entries, entry)
	if err := core.WriteJSON(l.path, l.entries); err != nil {
		l.entries = l.entries[:len(l.entries)-1]
		return fmt.Errorf("persist ledger: %w", err)
	}
	l.done[videoID] = true
	return nil
}

// Len reports the number of well-formed entries currently held.
func (l *Ledger) Len() int {
	return len(l.entries)
}
