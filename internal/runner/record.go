package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/pipeforge/pipeforge/internal/pipeline"
)

// Record mirrors the run state onto disk after every stage, so a
// crashed or aborted run can still be inspected.
type Record struct {
	RunID     string        `json:"run_id"`
	Outcome   string        `json:"outcome,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
	Stages    []StageRecord `json:"stages"`
}

type StageRecord struct {
	Name       string `json:"name"`
	Policy     string `json:"policy"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func writeRecord(path string, run *pipeline.Run) error {
	record := Record{
		RunID:     run.ID,
		Outcome:   string(run.Outcome),
		UpdatedAt: time.Now(),
	}
	for _, result := range run.Results {
		stage := StageRecord{
			Name:       result.Stage,
			Policy:     string(result.Policy),
			Status:     string(result.Status),
			DurationMS: result.Duration.Milliseconds(),
		}
		if result.Err != nil {
			stage.Error = result.Err.Error()
		}
		record.Stages = append(record.Stages, stage)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "Failed to create state directory")
	}
	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.Wrap(err, "Failed to marshal run record")
	}
	return errors.Wrap(os.WriteFile(path, content, 0644), "Failed to write run record")
}

func LoadRecord(path string) (*Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read run record")
	}
	record := &Record{}
	if err := json.Unmarshal(content, record); err != nil {
		return nil, errors.Wrap(err, "Failed to unmarshal run record")
	}
	return record, nil
}
