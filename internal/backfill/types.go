// Package backfill analyses an archive of existing diary entries and writes
// them into user history, resumably.
package backfill

import "time"

// Entry is one archived diary entry.
type Entry struct {
	EntryID   string    `json:"entry_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	MoodScore int       `json:"mood_score,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Key identifies an entry in the resume state.
func (e Entry) Key() string { return e.UserID + "/" + e.EntryID }

// Summary reports the outcome of one run.
type Summary struct {
	Read       int  `json:"read"`
	Duplicates int  `json:"duplicates"`
	Skipped    int  `json:"skipped"` // already processed or out of range
	Pending    int  `json:"pending"`
	Analyzed   int  `json:"analyzed"`
	Fallbacks  int  `json:"fallbacks"`
	Errors     int  `json:"errors"`
	DryRun     bool `json:"dry_run"`
}
