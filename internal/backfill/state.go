package backfill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultStatePath is where resume state is kept unless overridden.
const DefaultStatePath = "~/.zihin/backfill-state.json"

// State tracks progress for resumable runs.
type State struct {
	StartedAt       time.Time `json:"started_at"`
	LastProcessedAt time.Time `json:"last_processed_at"`
	Processed       []string  `json:"processed"`
	Remaining       int       `json:"remaining"`
	Analyzed        int       `json:"analyzed"`
	Fallbacks       int       `json:"fallbacks"`
	Errors          []string  `json:"errors"`

	path string
	done map[string]bool
}

// LoadState reads the state at path, or starts a fresh one.
func LoadState(path string) (*State, error) {
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{StartedAt: time.Now().UTC(), path: p, done: map[string]bool{}}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	s.done = make(map[string]bool, len(s.Processed))
	for _, k := range s.Processed {
		s.done[k] = true
	}
	return &s, nil
}

// Save persists the state.
func (s *State) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

func (s *State) IsProcessed(key string) bool { return s.done[key] }

func (s *State) MarkProcessed(key string) {
	if s.done[key] {
		return
	}
	s.done[key] = true
	s.Processed = append(s.Processed, key)
}

func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// Path is the resolved state file location.
func (s *State) Path() string { return s.path }

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
