// Package image builds, tags and publishes the container image for a
// pipeline run.
package image

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	lf "github.com/pipeforge/pipeforge/internal/logfield"
)

// Engine is the container engine surface the builder consumes.
type Engine interface {
	Build(ctx context.Context, dockerfile, contextDir string, tags []string) error
	Push(ctx context.Context, imageRef string) error
	Prune(ctx context.Context) error
}

// Refs are the two references an image carries for one run: the fixed
// tag that always tracks the newest build and the unique per-run tag
// the deployment pins.
type Refs struct {
	Fixed string
	Run   string
}

type Builder struct {
	logger *zap.Logger
	engine Engine

	repository string
	fixedTag   string
	dockerfile string
	contextDir string
}

func NewBuilder(logger *zap.Logger, engine Engine, repository, fixedTag, dockerfile, contextDir string) *Builder {
	return &Builder{
		logger:     logger.Named("image"),
		engine:     engine,
		repository: repository,
		fixedTag:   fixedTag,
		dockerfile: dockerfile,
		contextDir: contextDir,
	}
}

// Build produces the image with both tags applied in one engine
// invocation.
func (b *Builder) Build(ctx context.Context, runID string) (Refs, error) {
	refs := Refs{
		Fixed: fmt.Sprintf("%s:%s", b.repository, b.fixedTag),
		Run:   fmt.Sprintf("%s:run-%s", b.repository, runID),
	}

	b.logger.Info("Building image", lf.Image(refs.Run))
	err := b.engine.Build(ctx, b.dockerfile, b.contextDir, []string{refs.Fixed, refs.Run})
	if err != nil {
		return Refs{}, errors.Wrap(err, "Failed to build image")
	}
	return refs, nil
}

// Push publishes both tags. A failure on either is fatal: the caller
// must not deploy an image whose push failed.
func (b *Builder) Push(ctx context.Context, refs Refs) error {
	for _, ref := range []string{refs.Fixed, refs.Run} {
		b.logger.Info("Pushing image", lf.Image(ref))
		if err := b.engine.Push(ctx, ref); err != nil {
			return errors.Wrapf(err, "Failed to push %s", ref)
		}
	}
	return nil
}

// Prune reclaims unused engine resources. Best-effort, errors are
// logged and swallowed.
func (b *Builder) Prune(ctx context.Context) {
	if err := b.engine.Prune(ctx); err != nil {
		b.logger.Warn("Failed to prune unused images", zap.Error(err))
	}
}
