package runner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pipeforge/pipeforge/internal/config"
	"github.com/pipeforge/pipeforge/internal/execer"
	lf "github.com/pipeforge/pipeforge/internal/logfield"
	"github.com/pipeforge/pipeforge/internal/pipeline"
	"github.com/pipeforge/pipeforge/internal/process"
	"github.com/pipeforge/pipeforge/internal/readiness"
	"github.com/pipeforge/pipeforge/pkg/targz"
)

// StageInfo describes one entry of the resolved plan, for display.
type StageInfo struct {
	Name   string
	Policy pipeline.Policy
}

// Plan resolves the stage sequence for a config without wiring any
// collaborators. The test stage policy is the one explicit per-stage
// configuration: the source pipelines never agreed on it.
func Plan(conf *config.Config) []StageInfo {
	testPolicy, ok := pipeline.ParsePolicy(conf.Stages.Test.Policy)
	if !ok {
		testPolicy = pipeline.PolicyTolerated
	}
	return []StageInfo{
		{"build", pipeline.PolicyFatal},
		{"smoke", pipeline.PolicyFatal},
		{"test", testPolicy},
		{"quality", pipeline.PolicyTolerated},
		{"package", pipeline.PolicyFatal},
		{"publish", pipeline.PolicyFatal},
		{"deploy", pipeline.PolicyFatal},
		{"verify", pipeline.PolicyFatal},
	}
}

func (r *Runner) stages() []pipeline.Stage {
	infos := Plan(r.config)
	actions := map[string]pipeline.Stage{
		"build":   {Action: r.buildStage},
		"smoke":   {Action: r.smokeStage, Post: r.stopAppPost},
		"test":    {Action: r.testStage, Post: r.archiveReportsPost},
		"quality": {Action: r.qualityStage},
		"package": {Action: r.packageStage},
		"publish": {Action: r.publishStage},
		"deploy":  {Action: r.deployStage},
		"verify":  {Action: r.verifyStage},
	}

	stages := make([]pipeline.Stage, 0, len(infos))
	for _, info := range infos {
		stage := actions[info.Name]
		stage.Name = info.Name
		stage.Policy = info.Policy
		stages = append(stages, stage)
	}
	return stages
}

func (r *Runner) buildStage(ctx context.Context, run *pipeline.Run) error {
	return r.runTool(ctx, "build", r.config.Build.Command)
}

func (r *Runner) smokeStage(ctx context.Context, run *pipeline.Run) error {
	proc, err := r.manager.Start(ctx, process.Spec{
		ServiceName: r.config.App.ServiceName,
		Command:     r.config.App.Command,
		Dir:         r.config.App.WorkDir,
		LogPath:     filepath.Join(r.config.State.Dir, "logs", r.config.App.ServiceName+".log"),
	})
	if err != nil {
		return err
	}
	r.proc = proc

	probe := readiness.HTTPProbe(r.httpClient, r.config.App.HealthPath, "/")
	outcome, err := r.poller.WaitAfterDelay(ctx, probe, r.config.App.StartupDelay)
	if outcome != readiness.Ready {
		// Second chance with bounded retries before giving up.
		outcome, err = r.poller.WaitBounded(ctx, probe, 5, 5*time.Second)
	}
	if outcome != readiness.Ready {
		tail := logTail(proc.LogPath, 4096)
		r.logger.Error("Application never became ready",
			lf.Service(r.config.App.ServiceName),
			zap.String("log_tail", tail),
		)
		return errors.Wrap(err, "Application never became ready")
	}
	return nil
}

func (r *Runner) stopAppPost(ctx context.Context, run *pipeline.Run) error {
	err := r.manager.Stop(ctx, r.proc)
	r.proc = nil
	return err
}

func (r *Runner) testStage(ctx context.Context, run *pipeline.Run) error {
	if err := r.runTool(ctx, "test", r.config.Build.TestCommand); err != nil {
		run.MarkUnstable()
		return err
	}
	return nil
}

func (r *Runner) archiveReportsPost(ctx context.Context, run *pipeline.Run) error {
	reports := []string{}
	for _, glob := range r.config.Build.ReportGlobs {
		matches, err := filepath.Glob(glob)
		if err != nil {
			return errors.Wrapf(err, "Bad report glob %s", glob)
		}
		reports = append(reports, matches...)
	}
	if len(reports) == 0 {
		r.logger.Info("No test reports to archive")
		return nil
	}

	path := r.archivePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "Failed to create archive directory")
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "Failed to create report archive")
	}
	defer file.Close()

	if err := targz.Archive(file, reports); err != nil {
		return err
	}
	r.archive = path
	r.logger.Info("Archived test reports", zap.Int("num_reports", len(reports)), lf.LogPath(path))
	return nil
}

func (r *Runner) qualityStage(ctx context.Context, run *pipeline.Run) error {
	command := r.config.Quality.Command
	if len(command) == 0 {
		r.logger.Info("Quality scan not configured, skipping")
		return nil
	}
	if r.config.Quality.ProjectKey != "" {
		command = append(command, "-Dsonar.projectKey="+r.config.Quality.ProjectKey)
	}
	return r.runTool(ctx, "quality", command)
}

func (r *Runner) packageStage(ctx context.Context, run *pipeline.Run) error {
	refs, err := r.builder.Build(ctx, shortID(run.ID))
	if err != nil {
		return err
	}
	r.refs = refs
	return nil
}

func (r *Runner) publishStage(ctx context.Context, run *pipeline.Run) error {
	return r.builder.Push(ctx, r.refs)
}

func (r *Runner) deployStage(ctx context.Context, run *pipeline.Run) error {
	targets, err := r.targets()
	if err != nil {
		return err
	}
	for _, target := range targets {
		if err := r.verifier.Deploy(ctx, target, r.config.Deploy.Manifests); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) verifyStage(ctx context.Context, run *pipeline.Run) error {
	targets, err := r.targets()
	if err != nil {
		return err
	}
	for _, target := range targets {
		outcome, err := r.verifier.Await(ctx, target)
		if outcome != readiness.Ready {
			diagnostics := r.verifier.Diagnostics(ctx, target)
			r.logger.Error("Rollout verification failed",
				lf.Target(target.Name),
				zap.String("diagnostics", diagnostics),
			)
			return err
		}
	}
	return nil
}

func (r *Runner) runTool(ctx context.Context, stage string, command []string) error {
	if len(command) == 0 {
		return errors.Errorf("No command configured for stage %s", stage)
	}

	logPath := filepath.Join(r.config.State.Dir, "logs", stage+".log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return errors.Wrap(err, "Failed to create log directory")
	}
	sink, err := os.Create(logPath)
	if err != nil {
		return errors.Wrap(err, "Failed to create stage log")
	}
	defer sink.Close()

	return r.execer.Run(ctx, execer.Command{
		Name:   command[0],
		Args:   command[1:],
		Dir:    r.config.App.WorkDir,
		Output: sink,
	})
}

func (r *Runner) archivePath() string {
	if r.config.Build.ArchivePath != "" {
		return r.config.Build.ArchivePath
	}
	return filepath.Join(r.config.State.Dir, "reports.tar.gz")
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

func logTail(path string, maxBytes int64) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return ""
	}
	if info.Size() > maxBytes {
		if _, err = file.Seek(-maxBytes, io.SeekEnd); err != nil {
			return ""
		}
	}
	content, err := io.ReadAll(file)
	if err != nil {
		return ""
	}
	return string(content)
}
