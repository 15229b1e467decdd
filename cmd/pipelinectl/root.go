package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pipelinectl",
	Short: "Operate and inspect a hailopipe inference pipeline",
	Long: `pipelinectl loads a hailopipe pipeline and either drives it against
frames (run) or reports on an already-running one (stats), reading its
configuration from a YAML file, HAILOPIPE_* environment variables, or
both.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configCmd)
}
