package backfill

import (
	"path/filepath"
	"testing"
)

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if s.IsProcessed("u1/1") {
		t.Fatal("fresh state should have nothing processed")
	}
	s.MarkProcessed("u1/1")
	s.MarkProcessed("u1/1")
	s.AddError("analyse u1/2: minimal fallback")
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState after save: %v", err)
	}
	if !loaded.IsProcessed("u1/1") {
		t.Error("expected processed key to survive a reload")
	}
	if len(loaded.Processed) != 1 {
		t.Errorf("expected MarkProcessed to be idempotent, got %v", loaded.Processed)
	}
	if len(loaded.Errors) != 1 {
		t.Errorf("expected one error, got %v", loaded.Errors)
	}
	if loaded.LastProcessedAt.IsZero() {
		t.Error("expected LastProcessedAt set on save")
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/test")
	if got := expandHome("~/.zihin/x.json"); got != "/home/test/.zihin/x.json" {
		t.Errorf("unexpected expansion %q", got)
	}
	if got := expandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed to %q", got)
	}
}
