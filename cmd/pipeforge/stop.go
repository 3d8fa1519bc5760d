package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pipeforge/pipeforge/internal/config"
	"github.com/pipeforge/pipeforge/internal/process"
	zlog "github.com/pipeforge/pipeforge/pkg/log"
)

func makeStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the recorded application process, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zlog.InitDev()
			defer zlog.Sync()

			conf, err := config.ParseConfig(configPath)
			if err != nil {
				return err
			}

			registry := process.NewFileRegistry(filepath.Join(conf.State.Dir, "process.json"))
			manager := process.NewManager(logger, registry)
			return manager.StopRecorded(context.Background())
		},
	}
}
