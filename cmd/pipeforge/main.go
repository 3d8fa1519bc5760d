package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pipeforge",
	Short: "Build-deploy pipeline orchestrator",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config")
	rootCmd.AddCommand(makeRunCommand())
	rootCmd.AddCommand(makeStopCommand())
	rootCmd.AddCommand(makeStagesCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Command failed: %s\n", err.Error())
		os.Exit(1)
	}
}
