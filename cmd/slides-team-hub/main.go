// Package main is the entry point for the slides-team-hub server and CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/smorand/slides-team-hub/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configPath string

	// cfg is loaded once before any command runs.
	cfg config.Config
)

// rootCmd is the base command for the slides-team-hub CLI.
var rootCmd = &cobra.Command{
	Use:   "slides-team-hub",
	Short: "Team hub for shared Google Slides presentations",
	Long: `slides-team-hub runs a team collaboration server over Google Slides:
local accounts, a shared registry of team presentations, update
detection against Google Slides, and combined PDF/HTML team reports.

Running without a subcommand starts the server.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./config.yaml or ~/.slides-team-hub/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
