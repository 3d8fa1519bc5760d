package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	lf "github.com/pipeforge/pipeforge/internal/logfield"
)

// Executor runs a declared stage sequence strictly in order. Failure
// handling is driven entirely by each stage's policy: a fatal failure
// skips everything after it, a tolerated one is recorded and the
// sequence continues.
type Executor struct {
	logger   *zap.Logger
	observer func(run *Run)
}

func NewExecutor(logger *zap.Logger) *Executor {
	return &Executor{logger: logger.Named("pipeline")}
}

// Observe registers a callback invoked after every recorded stage
// result, e.g. to mirror the run state onto disk.
func (e *Executor) Observe(observer func(run *Run)) {
	e.observer = observer
}

func (e *Executor) Execute(ctx context.Context, stages []Stage) *Run {
	run := &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}

	log := e.logger.With(lf.RunID(run.ID))
	log.Info("Starting pipeline run", zap.Int("num_stages", len(stages)))

	aborted := false
	for _, stage := range stages {
		if aborted {
			run.Results = append(run.Results, StageResult{
				Stage:  stage.Name,
				Policy: stage.Policy,
				Status: StatusSkipped,
			})
			log.Info("Skipping stage", lf.Stage(stage.Name))
			if e.observer != nil {
				e.observer(run)
			}
			continue
		}

		result := e.runStage(ctx, run, stage)
		run.Results = append(run.Results, result)
		if e.observer != nil {
			e.observer(run)
		}
		if result.Status == StatusFailed && stage.Policy == PolicyFatal {
			log.Error("Fatal stage failed, aborting remaining stages",
				lf.Stage(stage.Name), zap.Error(result.Err))
			aborted = true
		}
	}

	run.FinishedAt = time.Now()
	run.Outcome = run.computeOutcome()
	log.Info("Finished pipeline run",
		lf.Outcome(string(run.Outcome)),
		zap.Duration("duration", run.Duration()),
	)
	return run
}

func (e *Executor) runStage(ctx context.Context, run *Run, stage Stage) StageResult {
	log := e.logger.With(lf.RunID(run.ID), lf.Stage(stage.Name), lf.Policy(string(stage.Policy)))
	log.Info("Running stage")

	started := time.Now()
	err := func() error {
		if stage.Post != nil {
			defer func() {
				if postErr := stage.Post(ctx, run); postErr != nil {
					log.Warn("Stage post-action failed", zap.Error(postErr))
				}
			}()
		}
		return stage.Action(ctx, run)
	}()

	result := StageResult{
		Stage:    stage.Name,
		Policy:   stage.Policy,
		Duration: time.Since(started),
	}
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		log.Error("Stage failed", zap.Error(err), zap.Duration("duration", result.Duration))
	} else {
		result.Status = StatusPassed
		log.Info("Stage passed", zap.Duration("duration", result.Duration))
	}
	return result
}
