package backfill

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint derives a stable entry id from the user and the
// whitespace-normalised text.
func Fingerprint(userID, text string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + strings.Join(strings.Fields(text), " ")))
	return "fp-" + hex.EncodeToString(sum[:8])
}

// Dedup keeps the first entry per user and id, preserving order.
func Dedup(entries []Entry) (unique []Entry, duplicates int) {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Key()] {
			duplicates++
			continue
		}
		seen[e.Key()] = true
		unique = append(unique, e)
	}
	return unique, duplicates
}
