package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/aschepis/backscratcher/llmguard/config"
	"github.com/aschepis/backscratcher/llmguard/llm"
	guardlogger "github.com/aschepis/backscratcher/llmguard/logger"
	"github.com/aschepis/backscratcher/llmguard/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// newCompleter builds the provider for a command. Tests replace it.
var newCompleter = func(cfg *config.Config, logger zerolog.Logger, opts ...llm.ProviderOption) (llm.Completer, error) {
	return config.NewProvider(cfg, logger, opts...)
}

// session is the state shared by all subcommands for one invocation.
type session struct {
	cfgFile     string
	logFile     string
	pretty      bool
	showMetrics bool
	timeout     time.Duration

	cfgPath  string
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	observer *metrics.Collector
}

func newRootCmd() *cobra.Command {
	s := &session{logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "llmguard",
		Short: "Budget-checked, retried LLM completions",
		Long: `llmguard sends completions to OpenAI, Anthropic, or Ollama with
context-window resolution, token budget checks, error classification and
bounded retries.

Examples:
  llmguard models
  llmguard window gpt-4o --strict
  llmguard count "How many tokens is this?"
  llmguard complete --system "Be brief" --prompt "Why is the sky blue?"
  llmguard extract --prompt "Ada Lovelace, born 1815" --schema person.json`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: s.init,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if !s.showMetrics || s.registry == nil {
				return nil
			}
			return writeMetrics(cmd.ErrOrStderr(), s.registry)
		},
	}

	root.PersistentFlags().StringVar(&s.cfgFile, "config", "", "config file (default is $LLMGUARD_CONFIG or ~/.llmguard/config.yaml)")
	root.PersistentFlags().StringVar(&s.logFile, "logfile", "", "path to log file; logs go to stderr when unset")
	root.PersistentFlags().BoolVar(&s.pretty, "pretty", false, "use pretty console logs (only valid when --logfile is not set)")
	root.PersistentFlags().BoolVar(&s.showMetrics, "metrics", false, "print call metrics to stderr when done")
	root.PersistentFlags().DurationVar(&s.timeout, "timeout", 5*time.Minute, "overall timeout for the command")
	root.MarkFlagsMutuallyExclusive("logfile", "pretty")

	root.AddCommand(
		newModelsCmd(s),
		newWindowCmd(s),
		newCountCmd(s),
		newCompleteCmd(s),
		newExtractCmd(s),
		newConfigCmd(s),
	)
	return root
}

func (s *session) init(cmd *cobra.Command, _ []string) error {
	if s.logFile != "" || s.pretty {
		logger, err := guardlogger.InitWithOptions(s.logFile, s.pretty)
		if err != nil {
			return err
		}
		s.logger = logger
	} else {
		s.logger = guardlogger.New(cmd.ErrOrStderr(), zerolog.WarnLevel)
	}

	path := s.cfgFile
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	s.cfgPath = path
	s.cfg = cfg
	s.logger.Debug().Str("path", path).Str("provider", cfg.Provider).Msg("Configuration loaded")

	s.registry = prometheus.NewRegistry()
	s.observer, err = metrics.NewCollector(s.registry)
	return err
}

// completer builds the configured provider with metrics attached.
func (s *session) completer() (llm.Completer, error) {
	return newCompleter(s.cfg, s.logger, llm.WithObserver(s.observer))
}

// context returns a context cancelled on interrupt or after --timeout.
func (s *session) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	if s.timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
