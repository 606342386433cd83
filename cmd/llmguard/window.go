package main

import (
	"fmt"

	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/spf13/cobra"
)

func newWindowCmd(s *session) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "window [model]",
		Short: "Show the context window of a model",
		Long: `Show the context window of a model.

Without a model, the configured model is asked from the backend when it can
report one, falling back to the built-in table. With --strict, unknown models
are an error instead of falling back to the default window.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.context(cmd)
			defer cancel()

			if len(args) == 0 {
				c, err := s.completer()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), c.ContextWindowSize(ctx))
				return nil
			}

			model := args[0]
			if strict {
				c, err := s.completer()
				if err != nil {
					return err
				}
				n, err := c.TokenContextWindow(model)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			}

			resolver := llm.NewWindowResolver(s.cfg.Provider, s.cfg.WindowTable(), s.logger)
			w, _ := resolver.Resolve(model, llm.ResolvePermissive)
			if w.Fallback {
				fmt.Fprintf(cmd.OutOrStdout(), "%d (default)\n", w.Size)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), w.Size)
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail for models not in the table")
	return cmd
}
