package rollout

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pipeforge/pipeforge/internal/readiness"
)

type fakeOrchestrator struct {
	applied      [][]string
	statusCalls  int
	readyAfter   int
	describeText string
	logsText     string
}

func (f *fakeOrchestrator) Apply(ctx context.Context, manifestPaths []string) error {
	f.applied = append(f.applied, manifestPaths)
	return nil
}

func (f *fakeOrchestrator) RolloutStatus(ctx context.Context, target string, timeout time.Duration) error {
	f.statusCalls++
	if f.readyAfter > 0 && f.statusCalls >= f.readyAfter {
		return nil
	}
	return errors.New("waiting for rollout")
}

func (f *fakeOrchestrator) Describe(ctx context.Context, target string) (string, error) {
	return f.describeText, nil
}

func (f *fakeOrchestrator) Logs(ctx context.Context, target string, tailLines int) (string, error) {
	return f.logsText, nil
}

func newTestVerifier(t *testing.T, orch Orchestrator) *Verifier {
	t.Helper()
	return NewVerifier(zap.NewNop(), orch, t.TempDir(), time.Millisecond, 5, 50)
}

func writeManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "petclinic.yaml")
	if err := os.WriteFile(path, []byte(petclinicManifest), 0644); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}
	return path
}

func TestDeployStagesRewrittenManifests(t *testing.T) {
	orch := &fakeOrchestrator{}
	verifier := newTestVerifier(t, orch)

	target := Target{Name: "petclinic", Image: "registry.local/petclinic:run-7"}
	if err := verifier.Deploy(context.Background(), target, []string{writeManifest(t)}); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	if len(orch.applied) != 1 || len(orch.applied[0]) != 1 {
		t.Fatalf("Unexpected apply calls: %v", orch.applied)
	}
	staged, err := os.ReadFile(orch.applied[0][0])
	if err != nil {
		t.Fatalf("Failed to read staged manifest: %v", err)
	}
	if !strings.Contains(string(staged), "registry.local/petclinic:run-7") {
		t.Fatalf("Staged manifest does not carry the per-run image:\n%s", staged)
	}
}

func TestDeployTwiceIsIdempotent(t *testing.T) {
	orch := &fakeOrchestrator{readyAfter: 1}
	verifier := newTestVerifier(t, orch)
	target := Target{Name: "petclinic", Image: "registry.local/petclinic:run-7"}
	path := writeManifest(t)

	if err := verifier.Deploy(context.Background(), target, []string{path}); err != nil {
		t.Fatalf("First deploy failed: %v", err)
	}
	if err := verifier.Deploy(context.Background(), target, []string{path}); err != nil {
		t.Fatalf("Second deploy with unchanged manifest failed: %v", err)
	}

	outcome, err := verifier.Await(context.Background(), target)
	if err != nil || outcome != readiness.Ready {
		t.Fatalf("Await after redeploy: outcome %s, err %v", outcome, err)
	}
}

func TestAwaitReadyAfterSomePolls(t *testing.T) {
	orch := &fakeOrchestrator{readyAfter: 3}
	verifier := newTestVerifier(t, orch)

	outcome, err := verifier.Await(context.Background(), Target{Name: "petclinic"})
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if outcome != readiness.Ready {
		t.Fatalf("Invalid outcome: %s", outcome)
	}
	if orch.statusCalls != 3 {
		t.Fatalf("Rollout status polled %d times, expected 3", orch.statusCalls)
	}
}

func TestAwaitTimesOut(t *testing.T) {
	orch := &fakeOrchestrator{}
	verifier := newTestVerifier(t, orch)

	outcome, err := verifier.Await(context.Background(), Target{Name: "petclinic"})
	if err == nil {
		t.Fatalf("Expected an error")
	}
	if outcome != readiness.TimedOut {
		t.Fatalf("Invalid outcome: %s", outcome)
	}
	if orch.statusCalls != 5 {
		t.Fatalf("Rollout status polled %d times, expected 5", orch.statusCalls)
	}
}

func TestDiagnosticsCombinesDescribeAndLogs(t *testing.T) {
	orch := &fakeOrchestrator{
		describeText: "Replicas: 0 ready / 2 desired",
		logsText:     "OutOfMemoryError",
	}
	verifier := newTestVerifier(t, orch)

	diagnostics := verifier.Diagnostics(context.Background(), Target{Name: "petclinic"})
	if !strings.Contains(diagnostics, orch.describeText) || !strings.Contains(diagnostics, orch.logsText) {
		t.Fatalf("Incomplete diagnostics:\n%s", diagnostics)
	}
}
