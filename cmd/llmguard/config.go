package main

import (
	"fmt"
	"os"

	"github.com/aschepis/backscratcher/llmguard/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the llmguard configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the current configuration to the config file",
		Long: `Write the current configuration (defaults plus environment overrides)
to the config file selected by --config, $LLMGUARD_CONFIG or
~/.llmguard/config.yaml. An existing file is kept unless --force is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(s.cfgPath); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", s.cfgPath)
			}
			if err := config.Save(s.cfg, s.cfgPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.cfgPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	cmd.AddCommand(initCmd)
	return cmd
}
