package rollout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	lf "github.com/pipeforge/pipeforge/internal/logfield"
	"github.com/pipeforge/pipeforge/internal/readiness"
)

// Orchestrator is the cluster CLI surface the verifier consumes.
type Orchestrator interface {
	Apply(ctx context.Context, manifestPaths []string) error
	RolloutStatus(ctx context.Context, target string, timeout time.Duration) error
	Describe(ctx context.Context, target string) (string, error)
	Logs(ctx context.Context, target string, tailLines int) (string, error)
}

// Target is a named deployable unit whose readiness is observed, never
// owned, by the verifier.
type Target struct {
	Name     string
	Image    string
	Deadline time.Duration
}

type Verifier struct {
	logger *zap.Logger
	orch   Orchestrator
	poller *readiness.Poller

	stageDir     string
	pollInterval time.Duration
	maxAttempts  int
	logTail      int
}

func NewVerifier(logger *zap.Logger, orch Orchestrator, stageDir string, pollInterval time.Duration, maxAttempts, logTail int) *Verifier {
	return &Verifier{
		logger:       logger.Named("rollout"),
		orch:         orch,
		poller:       readiness.NewPoller(logger),
		stageDir:     stageDir,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		logTail:      logTail,
	}
}

// Deploy rewrites the manifests to the target image and applies them.
// Apply is declarative: an already-applied manifest is a no-op, never
// an error.
func (v *Verifier) Deploy(ctx context.Context, target Target, manifestPaths []string) error {
	staged, err := v.stageManifests(target, manifestPaths)
	if err != nil {
		return err
	}

	v.logger.Info("Applying manifests",
		lf.Target(target.Name),
		lf.Image(target.Image),
		zap.Strings("manifests", staged),
	)
	return errors.Wrap(v.orch.Apply(ctx, staged), "Failed to apply manifests")
}

// Await blocks until the target reports all replicas ready or the
// deadline expires. A timeout is fatal for the owning stage.
func (v *Verifier) Await(ctx context.Context, target Target) (readiness.Outcome, error) {
	probe := func(ctx context.Context) error {
		return v.orch.RolloutStatus(ctx, target.Name, v.pollInterval)
	}

	deadlineCtx := ctx
	if target.Deadline > 0 {
		var cancel context.CancelFunc
		deadlineCtx, cancel = context.WithTimeout(ctx, target.Deadline)
		defer cancel()
	}

	outcome, err := v.poller.WaitBounded(deadlineCtx, probe, v.maxAttempts, v.pollInterval)
	if outcome != readiness.Ready {
		return outcome, errors.Wrapf(err, "Rollout of %s did not become ready", target.Name)
	}
	v.logger.Info("Rollout ready", lf.Target(target.Name))
	return outcome, nil
}

// Diagnostics gathers the resource description and a log tail for a
// target whose rollout timed out. Collection failures are reported
// inline, never propagated.
func (v *Verifier) Diagnostics(ctx context.Context, target Target) string {
	out := &strings.Builder{}

	description, err := v.orch.Describe(ctx, target.Name)
	if err != nil {
		fmt.Fprintf(out, "describe failed: %v\n", err)
	} else {
		out.WriteString(description)
	}
	out.WriteString("\n")

	logs, err := v.orch.Logs(ctx, target.Name, v.logTail)
	if err != nil {
		fmt.Fprintf(out, "log tail failed: %v\n", err)
	} else {
		out.WriteString(logs)
	}

	return out.String()
}

func (v *Verifier) stageManifests(target Target, manifestPaths []string) ([]string, error) {
	dir := filepath.Join(v.stageDir, "manifests")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "Failed to create manifest staging directory")
	}

	staged := make([]string, 0, len(manifestPaths))
	for _, path := range manifestPaths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read manifest %s", path)
		}

		manifest, err := ParseManifest(content)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse manifest %s", path)
		}
		if target.Image != "" {
			manifest.SetImage(target.Image)
		}

		rewritten, err := manifest.Bytes()
		if err != nil {
			return nil, err
		}

		out := filepath.Join(dir, filepath.Base(path))
		if err := os.WriteFile(out, rewritten, 0644); err != nil {
			return nil, errors.Wrapf(err, "Failed to stage manifest %s", path)
		}
		staged = append(staged, out)
	}
	return staged, nil
}
