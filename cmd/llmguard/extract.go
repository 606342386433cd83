package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/spf13/cobra"
)

func newExtractCmd(s *session) *cobra.Command {
	var (
		system, prompt, schemaFile string
		name, description          string
		temperature                float64
		maxTokens                  int
		stop                       []string
	)

	cmd := &cobra.Command{
		Use:   "extract --prompt <text> --schema <file>",
		Short: "Run a structured completion constrained to a JSON schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.context(cmd)
			defer cancel()

			raw, err := os.ReadFile(schemaFile) //#nosec 304 -- user-supplied schema file
			if err != nil {
				return fmt.Errorf("failed to read schema: %w", err)
			}
			if !json.Valid(raw) {
				return fmt.Errorf("schema %s is not valid JSON", schemaFile)
			}

			var msgs []llm.Message
			if system != "" {
				msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
			}
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: prompt})

			req := llm.CompletionRequest{Prompt: llm.MessagesPrompt(msgs...)}
			overrides := &llm.CallOverrides{StopSequences: stop}
			if cmd.Flags().Changed("temperature") {
				overrides.Temperature = llm.Float(temperature)
			}
			if maxTokens > 0 {
				overrides.MaxOutputTokens = llm.Int(maxTokens)
			}
			req.Overrides = overrides

			schema := llm.OutputSchema{Name: name, Description: description, Schema: raw}

			c, err := s.completer()
			if err != nil {
				return err
			}
			data, err := c.GetStructuredCompletion(ctx, req, schema)
			if err != nil {
				return err
			}

			var out bytes.Buffer
			if err := json.Indent(&out, data, "", "  "); err != nil {
				return fmt.Errorf("failed to format result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "system prompt")
	cmd.Flags().StringVar(&prompt, "prompt", "", "user prompt (required)")
	cmd.Flags().StringVar(&schemaFile, "schema", "", "path to a JSON schema file (required)")
	cmd.Flags().StringVar(&name, "name", "", "extraction name (default derived from --description)")
	cmd.Flags().StringVar(&description, "description", "", "description of the extracted data")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature override")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "maximum output tokens override")
	cmd.Flags().StringSliceVar(&stop, "stop", nil, "stop sequence (repeatable)")
	_ = cmd.MarkFlagRequired("prompt")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}
