// Package notify delivers terminal-outcome notifications. Delivery is
// fire-and-forget from the run's perspective: a failed send never
// changes the recorded outcome.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-units"

	"github.com/pipeforge/pipeforge/internal/pipeline"
)

type Message struct {
	JobName     string
	RunID       string
	Outcome     pipeline.Outcome
	Duration    time.Duration
	LogsURL     string
	Detail      string
	Attachments []string
}

func (m Message) Subject() string {
	switch m.Outcome {
	case pipeline.OutcomeSuccess:
		return fmt.Sprintf("✅ %s: run %s succeeded", m.JobName, m.RunID)
	case pipeline.OutcomeUnstable:
		return fmt.Sprintf("⚠️ %s: run %s is unstable", m.JobName, m.RunID)
	default:
		return fmt.Sprintf("❌ %s: run %s failed", m.JobName, m.RunID)
	}
}

func (m Message) HumanDuration() string {
	return units.HumanDuration(m.Duration)
}

type Notifier interface {
	Send(ctx context.Context, message Message) error
}
