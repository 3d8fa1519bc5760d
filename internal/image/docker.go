package image

import (
	"context"

	"github.com/pipeforge/pipeforge/internal/execer"
)

// Docker shells out to the configured container engine binary. Works
// with any docker-compatible CLI.
type Docker struct {
	execer *execer.Execer
	binary string
}

func NewDocker(exec *execer.Execer, binary string) *Docker {
	return &Docker{execer: exec, binary: binary}
}

func (d *Docker) Build(ctx context.Context, dockerfile, contextDir string, tags []string) error {
	args := []string{"build", "-f", dockerfile}
	for _, tag := range tags {
		args = append(args, "-t", tag)
	}
	args = append(args, contextDir)
	return d.execer.Run(ctx, execer.Command{Name: d.binary, Args: args})
}

func (d *Docker) Push(ctx context.Context, imageRef string) error {
	return d.execer.Run(ctx, execer.Command{Name: d.binary, Args: []string{"push", imageRef}})
}

func (d *Docker) Prune(ctx context.Context) error {
	return d.execer.Run(ctx, execer.Command{Name: d.binary, Args: []string{"image", "prune", "-f"}})
}
