package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jllopis/crewsum/pkg/config"
	"github.com/jllopis/crewsum/pkg/errors"
	"github.com/jllopis/crewsum/pkg/modelclient"
	"github.com/jllopis/crewsum/pkg/pipeline"
	"github.com/jllopis/crewsum/pkg/resilience"
	"github.com/jllopis/crewsum/pkg/telemetry"
)

//go:embed sample_document.md
var sampleDocument string

type summariseFlags struct {
	sample       bool
	output       string
	showAnalysis bool
	raw          bool
	apiKey       string
	provider     string
	envFile      string
}

func (a *app) newSummariseCmd() *cobra.Command {
	var flags summariseFlags
	cmd := &cobra.Command{
		Use:     "summarise [file|-]",
		Aliases: []string{"summarize"},
		Short:   "Analyse a document and print an executive summary",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.summarise(cmd.Context(), flags, args)
		},
	}
	cmd.Flags().BoolVar(&flags.sample, "sample", false, "Summarise the built-in sample requirements document")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write the summary to this file instead of stdout")
	cmd.Flags().BoolVar(&flags.showAnalysis, "show-analysis", false, "Also print the analyst's intermediate output")
	cmd.Flags().BoolVar(&flags.raw, "raw", false, "Print markdown as-is instead of rendering it")
	cmd.Flags().StringVar(&flags.apiKey, "api-key", "", "Provider API key (default from the provider's env var)")
	cmd.Flags().StringVar(&flags.provider, "provider", "", "Model provider: openai or anthropic (default llm.provider)")
	cmd.Flags().StringVar(&flags.envFile, "env-file", ".env", "Load environment variables from this file when it exists")
	return cmd
}

func (a *app) summarise(ctx context.Context, flags summariseFlags, args []string) error {
	cfg := a.cfg
	logger := slog.Default()

	if err := loadEnvFile(flags.envFile); err != nil {
		logger.Warn("env file could not be loaded", "path", flags.envFile, "error", err)
	}

	document, err := a.readDocument(flags, args)
	if err != nil {
		return err
	}

	providerName := cfg.LLM.Provider
	if flags.provider != "" {
		providerName = flags.provider
	}
	provider, err := modelclient.ParseProvider(providerName)
	if err != nil {
		return err
	}
	creds := modelclient.Credentials{Provider: provider, APIKey: a.resolveAPIKey(flags.apiKey, provider)}

	store, err := config.LoadCrew(cfg.Crew.Path)
	if err != nil {
		return NewConfigError(err, cfg.Crew.Path)
	}

	shutdown, err := telemetry.InitWithConfig(cfg.Telemetry.ServiceName, version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		Output:       a.stderr,
	})
	if err != nil {
		return errors.New(errors.CodeInternal, "telemetry setup failed", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	runner, err := newRunner(cfg, store, logger, flags.showAnalysis, pipeline.WithObserver(progressObserver(logger)))
	if err != nil {
		return err
	}

	res, err := resilience.WithTimeout(ctx, resilience.TimeoutConfig{Duration: cfg.Pipeline.Timeout()},
		func(ctx context.Context) (*pipeline.Result, error) {
			return runner.Run(ctx, creds, document)
		})
	if err != nil {
		return err
	}

	return a.writeResult(res, flags)
}

// newRunner wires the pipeline the same way for the CLI and the server.
func newRunner(cfg *config.Config, store *config.Store, logger *slog.Logger, keepAnalysis bool, extra ...pipeline.Option) (*pipeline.Runner, error) {
	metrics, err := telemetry.NewPipelineMetrics()
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "metrics setup failed", err)
	}

	configured, _ := modelclient.ParseProvider(cfg.LLM.Provider)
	factory := pipeline.ModelFactory(pipeline.FactoryConfig{
		Base: modelclient.Options{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			BaseURL:     cfg.LLM.BaseURL,
			MaxTokens:   cfg.LLM.MaxTokens,
			Logger:      logger,
		},
		Provider: configured,
		Retry: resilience.DefaultRetryConfig().
			WithMaxAttempts(cfg.LLM.RetryMaxAttempts).
			WithInitialDelay(cfg.LLM.RetryInitialDelay()).
			WithMaxDelay(cfg.LLM.RetryMaxDelay()).
			WithOnRetry(func(attempt int, err error) {
				logger.Warn("retrying model call", "attempt", attempt, "code", string(errors.CodeOf(err)))
			}),
	})

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithKeepAnalysis(keepAnalysis || cfg.Pipeline.KeepAnalysis),
		pipeline.WithMetrics(metrics),
	}
	return pipeline.New(store, factory, append(opts, extra...)...)
}

func progressObserver(logger *slog.Logger) pipeline.Observer {
	return func(ev pipeline.RunEvent) {
		switch ev.To {
		case pipeline.StateAnalysisPending:
			logger.Info("document analyst reviewing content", "run_id", ev.RunID)
		case pipeline.StateSummaryPending:
			logger.Info("summary writer creating executive summary", "run_id", ev.RunID)
		case pipeline.StateSummaryComplete:
			logger.Info("summary complete", "run_id", ev.RunID)
		}
	}
}

func (a *app) readDocument(flags summariseFlags, args []string) (string, error) {
	if flags.sample {
		if len(args) > 0 {
			return "", NewInvalidArgumentError("--sample", "--sample cannot be combined with a file argument")
		}
		return sampleDocument, nil
	}

	if len(args) == 0 || args[0] == "-" {
		if len(args) == 0 && isTerminal(a.stdin) {
			return "", NewInvalidArgumentError("file", "no document given; pass a file, '-' for stdin, or --sample")
		}
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", errors.New(errors.CodeInternal, "cannot read document from stdin", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", NewInvalidArgumentError(args[0], fmt.Sprintf("cannot read document: %v", err))
	}
	return string(data), nil
}

// resolveAPIKey prefers the flag, then the provider's env var, then an
// interactive prompt when stdin is a terminal. The key is never echoed.
func (a *app) resolveAPIKey(flagValue string, provider modelclient.ProviderName) string {
	if key := strings.TrimSpace(flagValue); key != "" {
		return key
	}
	if key := strings.TrimSpace(os.Getenv(provider.EnvVar())); key != "" {
		return key
	}
	f, ok := a.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return ""
	}
	fmt.Fprintf(a.stderr, "Enter your %s API key: ", provider)
	key, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.stderr)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(key))
}

func (a *app) writeResult(res *pipeline.Result, flags summariseFlags) error {
	if flags.output != "" {
		if err := os.WriteFile(flags.output, []byte(res.Summary), 0o644); err != nil {
			return errors.New(errors.CodeInternal, "cannot write summary", err).WithContext("path", flags.output)
		}
		fmt.Fprintf(a.stderr, "Summary written to %s\n", flags.output)
		if !flags.showAnalysis {
			return nil
		}
	}

	var b strings.Builder
	if flags.showAnalysis && res.Analysis != "" {
		b.WriteString("# Analysis\n\n")
		b.WriteString(strings.TrimSpace(res.Analysis))
		b.WriteString("\n\n")
	}
	if flags.output == "" {
		if b.Len() > 0 {
			b.WriteString("# Executive Summary\n\n")
		}
		b.WriteString(strings.TrimSpace(res.Summary))
		b.WriteString("\n")
	}

	out := b.String()
	if !flags.raw && isTerminal(a.stdout) {
		if rendered, err := renderMarkdown(out); err == nil {
			out = rendered
		}
	}
	_, err := io.WriteString(a.stdout, out)
	return err
}

func renderMarkdown(md string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}
