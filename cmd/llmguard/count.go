package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newCountCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "count <text>|-",
		Short: "Count the tokens in a piece of text",
		Long: `Count the tokens in a piece of text using the provider's tokenizer when it
has one and the four-characters-per-token approximation otherwise.
Pass "-" to read the text from stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.context(cmd)
			defer cancel()

			text := strings.Join(args, " ")
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}

			c, err := s.completer()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.CountTokens(ctx, text))
			return nil
		},
	}
}
