package process

import (
	"context"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestManager(registry Registry) *Manager {
	manager := NewManager(zap.NewNop(), registry)
	manager.stopChecks = 20
	manager.checkInterval = 50 * time.Millisecond
	return manager
}

func sleepSpec(t *testing.T) Spec {
	t.Helper()
	return Spec{
		ServiceName: "petclinic",
		Command:     []string{"sleep", "60"},
		LogPath:     filepath.Join(t.TempDir(), "petclinic.log"),
	}
}

func TestStartThenStop(t *testing.T) {
	registry := NewMemoryRegistry()
	manager := newTestManager(registry)

	proc, err := manager.Start(context.Background(), sleepSpec(t))
	if err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}
	if record, _ := registry.Load(); record == nil || record.Pid != proc.Pid {
		t.Fatalf("Process identity was not persisted")
	}

	if err := manager.Stop(context.Background(), proc); err != nil {
		t.Fatalf("Failed to stop process: %v", err)
	}
	if err := syscall.Kill(proc.Pid, 0); err == nil {
		t.Fatalf("Process %d still alive after stop", proc.Pid)
	}
	if record, _ := registry.Load(); record != nil {
		t.Fatalf("Process record not cleared after stop")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	registry := NewMemoryRegistry()
	manager := newTestManager(registry)

	proc, err := manager.Start(context.Background(), sleepSpec(t))
	if err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}

	if err := manager.Stop(context.Background(), proc); err != nil {
		t.Fatalf("First stop failed: %v", err)
	}
	if err := manager.Stop(context.Background(), proc); err != nil {
		t.Fatalf("Second stop failed: %v", err)
	}
	if record, _ := registry.Load(); record != nil {
		t.Fatalf("Process record not cleared")
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	manager := newTestManager(NewMemoryRegistry())

	if err := manager.StopRecorded(context.Background()); err != nil {
		t.Fatalf("StopRecorded without a record failed: %v", err)
	}
	if err := manager.Stop(context.Background(), nil); err != nil {
		t.Fatalf("Stop(nil) failed: %v", err)
	}
}

func TestStartTerminatesStraggler(t *testing.T) {
	registry := NewMemoryRegistry()
	manager := newTestManager(registry)

	straggler, err := manager.Start(context.Background(), sleepSpec(t))
	if err != nil {
		t.Fatalf("Failed to start straggler: %v", err)
	}

	proc, err := manager.Start(context.Background(), sleepSpec(t))
	if err != nil {
		t.Fatalf("Failed to start replacement: %v", err)
	}
	defer manager.Stop(context.Background(), proc)

	if err := syscall.Kill(straggler.Pid, 0); err == nil {
		t.Fatalf("Straggler %d survived a new start", straggler.Pid)
	}
	if record, _ := registry.Load(); record == nil || record.Pid != proc.Pid {
		t.Fatalf("Registry does not point at the replacement process")
	}
}

func TestStopClearsRecordForDeadProcess(t *testing.T) {
	registry := NewMemoryRegistry()
	manager := newTestManager(registry)

	// A pid that cannot exist keeps the registry pointing at a ghost.
	if err := registry.Store(&Record{ServiceName: "petclinic", Pid: 1 << 30}); err != nil {
		t.Fatalf("Failed to seed registry: %v", err)
	}

	if err := manager.StopRecorded(context.Background()); err != nil {
		t.Fatalf("StopRecorded failed: %v", err)
	}
	if record, _ := registry.Load(); record != nil {
		t.Fatalf("Ghost record not cleared")
	}
}
