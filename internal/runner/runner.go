// Package runner wires the pipeline components together and executes
// the build-deploy plan for one run.
package runner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pipeforge/pipeforge/internal/config"
	"github.com/pipeforge/pipeforge/internal/execer"
	"github.com/pipeforge/pipeforge/internal/image"
	"github.com/pipeforge/pipeforge/internal/notify"
	"github.com/pipeforge/pipeforge/internal/pipeline"
	"github.com/pipeforge/pipeforge/internal/process"
	"github.com/pipeforge/pipeforge/internal/readiness"
	"github.com/pipeforge/pipeforge/internal/report"
	"github.com/pipeforge/pipeforge/internal/rollout"
)

type Runner struct {
	logger *zap.Logger
	config *config.Config

	execer     *execer.Execer
	manager    *process.Manager
	poller     *readiness.Poller
	builder    *image.Builder
	verifier   *rollout.Verifier
	executor   *pipeline.Executor
	dispatcher *report.Dispatcher
	httpClient *resty.Client

	// Run-scoped state shared between stages.
	proc    *process.ManagedProcess
	refs    image.Refs
	archive string
}

func New(logger *zap.Logger, conf *config.Config) (*Runner, error) {
	exec := execer.New(logger)
	registry := process.NewFileRegistry(filepath.Join(conf.State.Dir, "process.json"))

	runner := &Runner{
		logger:     logger.Named("runner"),
		config:     conf,
		execer:     exec,
		manager:    process.NewManager(logger, registry),
		poller:     readiness.NewPoller(logger),
		httpClient: readiness.NewHTTPClient(conf.App.URL),
		executor:   pipeline.NewExecutor(logger),
	}

	runner.builder = image.NewBuilder(logger,
		image.NewDocker(exec, conf.Image.Engine),
		conf.Image.Repository, conf.Image.FixedTag,
		conf.Image.Dockerfile, conf.Image.ContextDir,
	)

	orch := rollout.NewKubectl(logger, exec, conf.Deploy.Kubectl, conf.Deploy.Namespace)
	runner.verifier = rollout.NewVerifier(logger, orch, conf.State.Dir,
		conf.Deploy.PollInterval, conf.Deploy.MaxAttempts, conf.Deploy.LogTail)

	notifiers, err := runner.buildNotifiers()
	if err != nil {
		return nil, err
	}
	runner.dispatcher = report.NewDispatcher(logger, conf.Job.Name, conf.Job.LogsURL,
		notifiers, runner.cleanups())

	return runner, nil
}

// Run executes the whole plan and finalizes it. The returned run is
// immutable: the dispatcher has already read it.
func (r *Runner) Run(ctx context.Context) *pipeline.Run {
	recordPath := filepath.Join(r.config.State.Dir, "run.json")
	r.executor.Observe(func(run *pipeline.Run) {
		if err := writeRecord(recordPath, run); err != nil {
			r.logger.Warn("Failed to mirror run record", zap.Error(err))
		}
	})

	run := r.executor.Execute(ctx, r.stages())

	if err := writeRecord(recordPath, run); err != nil {
		r.logger.Warn("Failed to write final run record", zap.Error(err))
	}

	attachments := []string{}
	if r.archive != "" {
		attachments = append(attachments, r.archive)
	}
	r.dispatcher.Finalize(ctx, run, attachments)
	return run
}

// StopRecorded exposes straggler cleanup for the stop command.
func (r *Runner) StopRecorded(ctx context.Context) error {
	return r.manager.StopRecorded(ctx)
}

func (r *Runner) targets() ([]rollout.Target, error) {
	targets := []rollout.Target{}
	seen := map[string]bool{}
	for _, path := range r.config.Deploy.Manifests {
		manifest, err := loadManifest(path)
		if err != nil {
			return nil, err
		}
		for _, name := range manifest.DeploymentNames() {
			if seen[name] {
				continue
			}
			seen[name] = true
			targets = append(targets, rollout.Target{
				Name:     name,
				Image:    r.refs.Run,
				Deadline: r.config.Deploy.Timeout,
			})
		}
	}
	return targets, nil
}

func (r *Runner) buildNotifiers() ([]notify.Notifier, error) {
	notifiers := []notify.Notifier{}

	email := r.config.Notify.Email
	if email.Enabled {
		notifiers = append(notifiers, notify.NewMailer(r.logger, email.Host, email.Port, email.From, email.To))
	}

	telegram := r.config.Notify.Telegram
	if telegram.Enabled {
		bot, err := notify.NewTelegram(r.logger, telegram.BotToken, telegram.ChatID)
		if err != nil {
			// A broken notifier must not block the pipeline itself.
			r.logger.Warn("Failed to set up telegram notifier", zap.Error(err))
		} else {
			notifiers = append(notifiers, bot)
		}
	}

	return notifiers, nil
}

func (r *Runner) cleanups() []report.Cleanup {
	return []report.Cleanup{
		func(ctx context.Context) {
			if err := r.manager.StopRecorded(ctx); err != nil {
				r.logger.Warn("Failed to stop recorded process during cleanup", zap.Error(err))
			}
		},
		func(ctx context.Context) {
			r.builder.Prune(ctx)
		},
	}
}

func loadManifest(path string) (*rollout.Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read manifest %s", path)
	}
	return rollout.ParseManifest(content)
}
