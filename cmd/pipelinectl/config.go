package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	hpconfig "github.com/modelingevolution/hailopipe/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the resolved pipeline configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration (file + env + defaults) as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := hpconfig.Load(cfgFile)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
