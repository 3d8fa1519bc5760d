package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipeforge/pipeforge/internal/config"
	"github.com/pipeforge/pipeforge/internal/runner"
)

func makeStagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "Print the resolved stage plan with failure policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.ParseConfig(configPath)
			if err != nil {
				return err
			}

			for i, info := range runner.Plan(conf) {
				fmt.Printf("%d. %-10s %s\n", i+1, info.Name, info.Policy)
			}
			return nil
		},
	}
}
