package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newModelsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models available to the configured provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.context(cmd)
			defer cancel()

			c, err := s.completer()
			if err != nil {
				return err
			}
			ids, err := c.ListModels(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
