package pipeline

import (
	"context"
	"time"
)

type Policy string

const (
	PolicyFatal     Policy = "fatal"
	PolicyTolerated Policy = "tolerated"
)

func ParsePolicy(value string) (Policy, bool) {
	switch Policy(value) {
	case PolicyFatal:
		return PolicyFatal, true
	case PolicyTolerated:
		return PolicyTolerated, true
	}
	return "", false
}

type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
	OutcomeUnstable Outcome = "unstable"
)

// Action is a stage body or post-action. It receives the run so it can
// set the unstable marker; it must not decide whole-run aborts itself.
type Action func(ctx context.Context, run *Run) error

type Stage struct {
	Name   string
	Policy Policy
	Action Action

	// Post runs on every exit path of Action, even a panic.
	Post Action
}

type StageResult struct {
	Stage    string
	Policy   Policy
	Status   Status
	Err      error
	Duration time.Duration
}

type Run struct {
	ID         string
	Results    []StageResult
	Outcome    Outcome
	StartedAt  time.Time
	FinishedAt time.Time

	unstable bool
}

// MarkUnstable records a degraded-confidence condition (e.g. test
// failures that were tolerated) without failing any stage.
func (r *Run) MarkUnstable() {
	r.unstable = true
}

func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FirstFailure returns the earliest failed stage result, if any.
func (r *Run) FirstFailure() (StageResult, bool) {
	for _, result := range r.Results {
		if result.Status == StatusFailed {
			return result, true
		}
	}
	return StageResult{}, false
}

func (r *Run) computeOutcome() Outcome {
	failed := false
	for _, result := range r.Results {
		if result.Status != StatusFailed {
			continue
		}
		if result.Policy == PolicyFatal {
			return OutcomeFailure
		}
		failed = true
	}
	if failed || r.unstable {
		return OutcomeUnstable
	}
	return OutcomeSuccess
}
