package rollout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pipeforge/pipeforge/internal/execer"
)

// Kubectl drives the cluster through the kubectl binary.
type Kubectl struct {
	execer    *execer.Execer
	binary    string
	namespace string
	logger    *zap.Logger
}

func NewKubectl(logger *zap.Logger, exec *execer.Execer, binary, namespace string) *Kubectl {
	return &Kubectl{
		execer:    exec,
		binary:    binary,
		namespace: namespace,
		logger:    logger.Named("kubectl"),
	}
}

func (k *Kubectl) Apply(ctx context.Context, manifestPaths []string) error {
	args := k.namespaced("apply")
	for _, path := range manifestPaths {
		args = append(args, "-f", path)
	}
	return k.execer.Run(ctx, execer.Command{Name: k.binary, Args: args})
}

func (k *Kubectl) RolloutStatus(ctx context.Context, target string, timeout time.Duration) error {
	args := k.namespaced("rollout", "status", "deployment/"+target,
		fmt.Sprintf("--timeout=%ds", int(timeout.Seconds())))
	return k.execer.Run(ctx, execer.Command{Name: k.binary, Args: args})
}

func (k *Kubectl) Describe(ctx context.Context, target string) (string, error) {
	args := k.namespaced("describe", "deployment", target)
	return k.execer.Capture(ctx, execer.Command{Name: k.binary, Args: args})
}

func (k *Kubectl) Logs(ctx context.Context, target string, tailLines int) (string, error) {
	args := k.namespaced("logs", "deployment/"+target, "--tail", strconv.Itoa(tailLines))
	return k.execer.Capture(ctx, execer.Command{Name: k.binary, Args: args})
}

func (k *Kubectl) namespaced(args ...string) []string {
	if k.namespace == "" {
		return args
	}
	return append(args, "-n", k.namespace)
}
