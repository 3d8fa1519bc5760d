// Package execer runs the external collaborators (build tool, scanner,
// container engine, cluster CLI) as opaque commands.
package execer

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	lf "github.com/pipeforge/pipeforge/internal/logfield"
)

type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string

	// Output receives combined stdout and stderr. Nil discards.
	Output io.Writer
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

type Execer struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Execer {
	return &Execer{logger: logger.Named("execer")}
}

// Run executes the command and waits for it. A non-zero exit status is
// returned as an error.
func (e *Execer) Run(ctx context.Context, command Command) error {
	e.logger.Debug("Running command", lf.Component(command.Name), zap.String("command", command.String()))

	cmd := exec.CommandContext(ctx, command.Name, command.Args...)
	cmd.Dir = command.Dir
	if len(command.Env) > 0 {
		cmd.Env = command.Env
	}
	if command.Output != nil {
		cmd.Stdout = command.Output
		cmd.Stderr = command.Output
	}

	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "Command failed: %s", command.String())
	}
	return nil
}

// Capture executes the command and returns its combined output. The
// output is returned even when the command fails, callers use it for
// diagnostics.
func (e *Execer) Capture(ctx context.Context, command Command) (string, error) {
	buf := &bytes.Buffer{}
	if command.Output != nil {
		command.Output = io.MultiWriter(buf, command.Output)
	} else {
		command.Output = buf
	}
	err := e.Run(ctx, command)
	return buf.String(), err
}
