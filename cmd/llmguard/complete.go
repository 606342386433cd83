package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCompleteCmd(s *session) *cobra.Command {
	var system, prompt string

	cmd := &cobra.Command{
		Use:   "complete --prompt <text>",
		Short: "Run a plain-text completion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.context(cmd)
			defer cancel()

			c, err := s.completer()
			if err != nil {
				return err
			}
			text, err := c.GetCompletion(ctx, system, prompt)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "system prompt")
	cmd.Flags().StringVar(&prompt, "prompt", "", "user prompt (required)")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}
