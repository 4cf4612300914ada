package backfill

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

type entryLine struct {
	EntryID   string          `json:"entry_id"`
	UserID    string          `json:"user_id"`
	Text      string          `json:"text"`
	Content   string          `json:"content"`
	MoodScore json.RawMessage `json:"mood_score"`
	CreatedAt string          `json:"created_at"`
}

// ParseFile reads a JSONL export with one entry per line.
func ParseFile(path, defaultUser string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return Parse(f, defaultUser)
}

// Parse reads JSONL entries. Malformed lines and entries without text are
// skipped. Entries without a user get defaultUser; entries without an id
// get a content fingerprint so reruns resolve to the same id.
func Parse(r io.Reader, defaultUser string) ([]Entry, error) {
	var out []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var line entryLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			continue
		}

		text := line.Text
		if strings.TrimSpace(text) == "" {
			text = line.Content
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		e := Entry{
			EntryID:   strings.TrimSpace(line.EntryID),
			UserID:    strings.TrimSpace(line.UserID),
			Text:      text,
			MoodScore: parseMood(line.MoodScore),
			CreatedAt: parseTime(line.CreatedAt),
		}
		if e.UserID == "" {
			e.UserID = defaultUser
		}
		if e.UserID == "" {
			continue
		}
		if e.EntryID == "" {
			e.EntryID = Fingerprint(e.UserID, e.Text)
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return out, nil
}

// parseMood accepts numbers and numeric strings; anything else is 0.
func parseMood(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n); err == nil {
			return n
		}
	}
	return 0
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
