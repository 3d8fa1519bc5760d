package process

import (
	"context"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	lf "github.com/pipeforge/pipeforge/internal/logfield"
)

const (
	defaultStopChecks    = 10
	defaultCheckInterval = time.Second
)

type Spec struct {
	ServiceName string
	Command     []string
	Dir         string
	LogPath     string
}

type ManagedProcess struct {
	Record
}

// Manager starts and stops the locally run application instance. At
// most one instance per logical service name is live at a time: Start
// terminates any recorded straggler before launching.
type Manager struct {
	logger   *zap.Logger
	registry Registry

	stopChecks    int
	checkInterval time.Duration
}

func NewManager(logger *zap.Logger, registry Registry) *Manager {
	return &Manager{
		logger:        logger.Named("process"),
		registry:      registry,
		stopChecks:    defaultStopChecks,
		checkInterval: defaultCheckInterval,
	}
}

func (m *Manager) Start(ctx context.Context, spec Spec) (*ManagedProcess, error) {
	log := m.logger.With(lf.Service(spec.ServiceName))

	if record, err := m.registry.Load(); err != nil {
		log.Warn("Failed to load process record, assuming not running", zap.Error(err))
	} else if record != nil {
		log.Info("Found straggler from a previous run, stopping it", lf.Pid(record.Pid))
		m.terminate(record)
	}

	if len(spec.Command) == 0 {
		return nil, errors.New("Empty process command")
	}

	sink := &lumberjack.Logger{
		Filename:   spec.LogPath,
		MaxSize:    32, // megabytes
		MaxBackups: 1,
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Stdout = sink
	cmd.Stderr = sink

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "Failed to start %s", spec.ServiceName)
	}
	// Reap the child when it exits on its own.
	go cmd.Wait()

	record := Record{
		ServiceName: spec.ServiceName,
		Pid:         cmd.Process.Pid,
		LogPath:     spec.LogPath,
		StartedAt:   time.Now(),
	}
	if err := m.registry.Store(&record); err != nil {
		log.Error("Failed to persist process record", zap.Error(err), lf.Pid(record.Pid))
	}

	log.Info("Started process", lf.Pid(record.Pid), lf.LogPath(spec.LogPath))
	return &ManagedProcess{Record: record}, nil
}

// Stop terminates the managed process gracefully, escalating to a
// forceful kill after the grace period. It is idempotent: a process
// that is already gone, or was never started, is not an error. The
// persisted record and the log sink are always removed.
func (m *Manager) Stop(ctx context.Context, proc *ManagedProcess) error {
	if proc == nil {
		return m.StopRecorded(ctx)
	}
	m.terminate(&proc.Record)
	return nil
}

// StopRecorded stops whatever process the registry knows about. Used
// by invocations that did not start the process themselves.
func (m *Manager) StopRecorded(ctx context.Context) error {
	record, err := m.registry.Load()
	if err != nil {
		m.logger.Warn("Failed to load process record", zap.Error(err))
		m.clear(nil)
		return nil
	}
	if record == nil {
		m.logger.Info("No recorded process, nothing to stop")
		return nil
	}
	m.terminate(record)
	return nil
}

func (m *Manager) terminate(record *Record) {
	log := m.logger.With(lf.Service(record.ServiceName), lf.Pid(record.Pid))

	if !m.alive(record.Pid) {
		log.Info("Process already exited")
		m.clear(record)
		return
	}

	log.Info("Sending SIGTERM")
	if err := syscall.Kill(record.Pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		log.Warn("Failed to signal process", zap.Error(err))
	}

	for i := 0; i < m.stopChecks; i++ {
		if !m.alive(record.Pid) {
			log.Info("Process exited gracefully")
			m.clear(record)
			return
		}
		time.Sleep(m.checkInterval)
	}

	log.Warn("Process survived the grace period, sending SIGKILL")
	if err := syscall.Kill(record.Pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		log.Error("Failed to kill process", zap.Error(err))
	}
	m.clear(record)
}

func (m *Manager) alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func (m *Manager) clear(record *Record) {
	if err := m.registry.Clear(); err != nil {
		m.logger.Warn("Failed to clear process record", zap.Error(err))
	}
	if record != nil && record.LogPath != "" {
		if err := os.Remove(record.LogPath); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("Failed to remove process log sink", zap.Error(err), lf.LogPath(record.LogPath))
		}
	}
}
