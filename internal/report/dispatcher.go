// Package report turns a finished pipeline run into notifications and
// always-run cleanup.
package report

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	lf "github.com/pipeforge/pipeforge/internal/logfield"
	"github.com/pipeforge/pipeforge/internal/notify"
	"github.com/pipeforge/pipeforge/internal/pipeline"
)

// Cleanup is a best-effort reclamation step. Failures are the step's
// own problem: it logs and returns.
type Cleanup func(ctx context.Context)

type Dispatcher struct {
	logger    *zap.Logger
	notifiers []notify.Notifier
	cleanups  []Cleanup

	jobName string
	logsURL string
}

func NewDispatcher(logger *zap.Logger, jobName, logsURL string, notifiers []notify.Notifier, cleanups []Cleanup) *Dispatcher {
	return &Dispatcher{
		logger:    logger.Named("report"),
		notifiers: notifiers,
		cleanups:  cleanups,
		jobName:   jobName,
		logsURL:   logsURL,
	}
}

// Finalize notifies on the run's outcome and then cleans up. Cleanup
// executes regardless of the notification branch or its errors, and
// never fails the run retroactively.
func (d *Dispatcher) Finalize(ctx context.Context, run *pipeline.Run, attachments []string) {
	defer d.cleanup(ctx)

	log := d.logger.With(lf.RunID(run.ID), lf.Outcome(string(run.Outcome)))
	log.Info("Finalizing run")

	message := d.buildMessage(run, attachments)
	for _, notifier := range d.notifiers {
		if err := notifier.Send(ctx, message); err != nil {
			log.Warn("Failed to send notification", zap.Error(err))
		}
	}
}

func (d *Dispatcher) buildMessage(run *pipeline.Run, attachments []string) notify.Message {
	message := notify.Message{
		JobName:     d.jobName,
		RunID:       run.ID,
		Outcome:     run.Outcome,
		Duration:    run.Duration(),
		LogsURL:     d.logsURL,
		Attachments: attachments,
	}

	switch run.Outcome {
	case pipeline.OutcomeSuccess:
		message.Detail = "All stages passed."
	case pipeline.OutcomeUnstable:
		message.Detail = "The run finished with tolerated failures:\n" + failureSummary(run)
	case pipeline.OutcomeFailure:
		message.Detail = "A fatal stage failed:\n" + failureSummary(run)
	}
	return message
}

func failureSummary(run *pipeline.Run) string {
	summary := ""
	for _, result := range run.Results {
		if result.Status != pipeline.StatusFailed {
			continue
		}
		summary += fmt.Sprintf("  %s (%s): %v\n", result.Stage, result.Policy, result.Err)
	}
	return summary
}

func (d *Dispatcher) cleanup(ctx context.Context) {
	d.logger.Info("Running cleanup", zap.Int("num_steps", len(d.cleanups)))
	for _, step := range d.cleanups {
		step(ctx)
	}
}
