package process

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Record is the single-slot persisted identity of the managed process.
// Absence of a record means "not running".
type Record struct {
	ServiceName string    `json:"service_name"`
	Pid         int       `json:"pid"`
	LogPath     string    `json:"log_path"`
	StartedAt   time.Time `json:"started_at"`
}

type Registry interface {
	Load() (*Record, error)
	Store(record *Record) error
	Clear() error
}

// FileRegistry keeps the record in a JSON file so a later invocation of
// a different binary can still find and stop the process.
type FileRegistry struct {
	path string
}

func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

func (r *FileRegistry) Load() (*Record, error) {
	content, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read process record")
	}

	record := &Record{}
	if err := json.Unmarshal(content, record); err != nil {
		return nil, errors.Wrap(err, "Failed to unmarshal process record")
	}
	return record, nil
}

func (r *FileRegistry) Store(record *Record) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return errors.Wrap(err, "Failed to create state directory")
	}
	content, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "Failed to marshal process record")
	}
	return errors.Wrap(os.WriteFile(r.path, content, 0644), "Failed to write process record")
}

func (r *FileRegistry) Clear() error {
	err := os.Remove(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "Failed to remove process record")
}

// MemoryRegistry is the in-memory substitute used in tests.
type MemoryRegistry struct {
	record *Record
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{}
}

func (r *MemoryRegistry) Load() (*Record, error) {
	return r.record, nil
}

func (r *MemoryRegistry) Store(record *Record) error {
	r.record = record
	return nil
}

func (r *MemoryRegistry) Clear() error {
	r.record = nil
	return nil
}
