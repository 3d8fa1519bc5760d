package process

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFileRegistryAbsentMeansNotRunning(t *testing.T) {
	registry := NewFileRegistry(filepath.Join(t.TempDir(), "process.json"))

	record, err := registry.Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if record != nil {
		t.Fatalf("Expected no record, got %+v", record)
	}
}

func TestFileRegistryRoundTrip(t *testing.T) {
	registry := NewFileRegistry(filepath.Join(t.TempDir(), "state", "process.json"))

	stored := &Record{
		ServiceName: "petclinic",
		Pid:         4242,
		LogPath:     "/tmp/petclinic.log",
		StartedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := registry.Store(stored); err != nil {
		t.Fatalf("Failed to store record: %v", err)
	}

	loaded, err := registry.Load()
	if err != nil {
		t.Fatalf("Failed to load record: %v", err)
	}
	if diff := cmp.Diff(stored, loaded); diff != "" {
		t.Fatalf("Record mismatch (-want +got):\n%s", diff)
	}
}

func TestFileRegistryClearIsIdempotent(t *testing.T) {
	registry := NewFileRegistry(filepath.Join(t.TempDir(), "process.json"))

	if err := registry.Clear(); err != nil {
		t.Fatalf("Clear on missing file failed: %v", err)
	}

	if err := registry.Store(&Record{ServiceName: "petclinic", Pid: 1}); err != nil {
		t.Fatalf("Failed to store record: %v", err)
	}
	if err := registry.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := registry.Clear(); err != nil {
		t.Fatalf("Second clear failed: %v", err)
	}

	record, err := registry.Load()
	if err != nil || record != nil {
		t.Fatalf("Expected empty registry, got %+v, %v", record, err)
	}
}
