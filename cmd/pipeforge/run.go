package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pipeforge/pipeforge/internal/config"
	lf "github.com/pipeforge/pipeforge/internal/logfield"
	"github.com/pipeforge/pipeforge/internal/pipeline"
	"github.com/pipeforge/pipeforge/internal/runner"
	zlog "github.com/pipeforge/pipeforge/pkg/log"
)

func makeRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute the full build-deploy pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.ParseConfig(configPath)
			if err != nil {
				return err
			}

			logger := zlog.InitProdFile(filepath.Join(conf.State.Dir, "pipeforge.log"))
			defer zlog.Sync()

			r, err := runner.New(logger, conf)
			if err != nil {
				return errors.Wrap(err, "Failed to set up pipeline")
			}

			// An external abort tears down the whole run.
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			run := r.Run(ctx)
			switch run.Outcome {
			case pipeline.OutcomeFailure:
				return errors.Errorf("Pipeline run %s failed", run.ID)
			case pipeline.OutcomeUnstable:
				logger.Warn("Pipeline finished unstable", lf.RunID(run.ID))
			}
			return nil
		},
	}
}
