package state

import (
	"testing"
)

func TestMemoryTracker(t *testing.T) {
	tracker := NewMemoryTracker()

	if tracker.AlreadyExported("h1") {
		t.Error("fresh tracker should not know h1")
	}

	if err := tracker.MarkExported("h1", "msg1"); err != nil {
		t.Fatalf("MarkExported() error = %v", err)
	}
	if !tracker.AlreadyExported("h1") {
		t.Error("h1 should be known after MarkExported")
	}

	// Empty hashes are ignored rather than tracked.
	if err := tracker.MarkExported("", "msg2"); err != nil {
		t.Fatalf("MarkExported(\"\") error = %v", err)
	}
	if tracker.AlreadyExported("") {
		t.Error("empty hash must never count as exported")
	}

	if got := tracker.Snapshot().Exported; got != 1 {
		t.Errorf("Snapshot().Exported = %d, want 1", got)
	}
}

func TestFileTrackerPersistence(t *testing.T) {
	dir := t.TempDir()

	tracker, err := NewFileTracker(dir, true)
	if err != nil {
		t.Fatalf("NewFileTracker() error = %v", err)
	}

	if err := tracker.MarkExported("h1", "msg1"); err != nil {
		t.Fatalf("MarkExported() error = %v", err)
	}
	if err := tracker.MarkExported("h2", "msg2"); err != nil {
		t.Fatalf("MarkExported() error = %v", err)
	}
	// Marking the same hash twice stays a no-op.
	if err := tracker.MarkExported("h1", "msg1"); err != nil {
		t.Fatalf("MarkExported() error = %v", err)
	}
	if err := tracker.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reloaded, err := NewFileTracker(dir, true)
	if err != nil {
		t.Fatalf("NewFileTracker() reload error = %v", err)
	}
	defer reloaded.Close()

	if !reloaded.AlreadyExported("h1") || !reloaded.AlreadyExported("h2") {
		t.Error("reloaded tracker lost exported hashes")
	}
	if got := reloaded.Snapshot().Exported; got != 2 {
		t.Errorf("Snapshot().Exported = %d, want 2", got)
	}
}

func TestFileTrackerNoPersist(t *testing.T) {
	dir := t.TempDir()

	tracker, err := NewFileTracker(dir, false)
	if err != nil {
		t.Fatalf("NewFileTracker() error = %v", err)
	}
	if err := tracker.MarkExported("h1", "msg1"); err != nil {
		t.Fatalf("MarkExported() error = %v", err)
	}
	if err := tracker.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reloaded, err := NewFileTracker(dir, false)
	if err != nil {
		t.Fatalf("NewFileTracker() reload error = %v", err)
	}
	if reloaded.AlreadyExported("h1") {
		t.Error("non-persisting tracker must not write state to disk")
	}
}

func TestFileTrackerEmptyDir(t *testing.T) {
	if _, err := NewFileTracker("  ", true); err == nil {
		t.Error("Expected error for empty state directory")
	}
}
