package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pipeforge/pipeforge/internal/notify"
	"github.com/pipeforge/pipeforge/internal/pipeline"
)

type recordingNotifier struct {
	messages []notify.Message
	err      error
}

func (r *recordingNotifier) Send(ctx context.Context, message notify.Message) error {
	r.messages = append(r.messages, message)
	return r.err
}

func runWithOutcome(outcome pipeline.Outcome, results ...pipeline.StageResult) *pipeline.Run {
	return &pipeline.Run{
		ID:         "cafe42",
		Outcome:    outcome,
		Results:    results,
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
	}
}

func TestFinalizeNotifiesOnce(t *testing.T) {
	notifier := &recordingNotifier{}
	dispatcher := NewDispatcher(zap.NewNop(), "petclinic", "http://ci/logs", []notify.Notifier{notifier}, nil)

	dispatcher.Finalize(context.Background(), runWithOutcome(pipeline.OutcomeSuccess), nil)

	if len(notifier.messages) != 1 {
		t.Fatalf("Sent %d messages, expected 1", len(notifier.messages))
	}
	message := notifier.messages[0]
	if message.Outcome != pipeline.OutcomeSuccess || message.RunID != "cafe42" {
		t.Fatalf("Unexpected message: %+v", message)
	}
	if message.LogsURL != "http://ci/logs" {
		t.Fatalf("Missing logs link: %+v", message)
	}
}

func TestFinalizeDifferentiatesOutcomes(t *testing.T) {
	failed := pipeline.StageResult{
		Stage:  "test",
		Policy: pipeline.PolicyTolerated,
		Status: pipeline.StatusFailed,
		Err:    errors.New("3 tests failed"),
	}

	for _, tc := range []struct {
		outcome pipeline.Outcome
		detail  string
	}{
		{pipeline.OutcomeSuccess, "All stages passed"},
		{pipeline.OutcomeUnstable, "tolerated failures"},
		{pipeline.OutcomeFailure, "fatal stage failed"},
	} {
		notifier := &recordingNotifier{}
		dispatcher := NewDispatcher(zap.NewNop(), "petclinic", "", []notify.Notifier{notifier}, nil)

		dispatcher.Finalize(context.Background(), runWithOutcome(tc.outcome, failed), nil)

		if len(notifier.messages) != 1 {
			t.Fatalf("%s: sent %d messages", tc.outcome, len(notifier.messages))
		}
		if !strings.Contains(notifier.messages[0].Detail, tc.detail) {
			t.Fatalf("%s: detail %q does not mention %q", tc.outcome, notifier.messages[0].Detail, tc.detail)
		}
	}
}

func TestCleanupRunsExactlyOnceEvenWhenNotifierFails(t *testing.T) {
	cleanups := 0
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	dispatcher := NewDispatcher(zap.NewNop(), "petclinic", "", []notify.Notifier{notifier},
		[]Cleanup{func(context.Context) { cleanups++ }})

	dispatcher.Finalize(context.Background(), runWithOutcome(pipeline.OutcomeFailure), nil)

	if cleanups != 1 {
		t.Fatalf("Cleanup ran %d times, expected 1", cleanups)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("Notification was not attempted")
	}
}

func TestCleanupRunsWithoutNotifiers(t *testing.T) {
	cleanups := 0
	dispatcher := NewDispatcher(zap.NewNop(), "petclinic", "", nil,
		[]Cleanup{func(context.Context) { cleanups++ }, func(context.Context) { cleanups++ }})

	dispatcher.Finalize(context.Background(), runWithOutcome(pipeline.OutcomeSuccess), nil)

	if cleanups != 2 {
		t.Fatalf("Cleanup steps ran %d times, expected 2", cleanups)
	}
}
