package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/torosent/dialogfire/internal/chat"
	"github.com/torosent/dialogfire/internal/clientmetrics"
	"github.com/torosent/dialogfire/internal/config"
	"github.com/torosent/dialogfire/internal/dashboard"
	"github.com/torosent/dialogfire/internal/dialogue"
	"github.com/torosent/dialogfire/internal/httpclient"
	"github.com/torosent/dialogfire/internal/logging"
	"github.com/torosent/dialogfire/internal/metrics"
	"github.com/torosent/dialogfire/internal/output"
	"github.com/torosent/dialogfire/internal/runner"
	"github.com/torosent/dialogfire/internal/threshold"
	"github.com/torosent/dialogfire/internal/tracing"
)

const (
	progressInterval = time.Second
	appTitle         = "dialogfire"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dialogfire",
		Short:         "Load test a chat bot backed by an OpenAI compatible API",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader().FromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), *cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	config.RegisterFlags(cmd)
	cmd.AddCommand(newReportCommand())
	return cmd
}

func run(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}
	evaluator := threshold.NewEvaluator(thresholds)

	console := stderr
	if cfg.Output.Dashboard {
		console = io.Discard
	}
	logger, closeLog, err := logging.New(cfg.Log, cfg.ResultsDir, console)
	if err != nil {
		return err
	}
	defer closeLog()

	tp, err := tracing.Init(ctx, cfg.Tracing, tracing.WithAttributes(
		attribute.String("chat.model", cfg.Chat.Model),
		attribute.String("chat.base_url", cfg.Chat.BaseURL),
	))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	cm := clientmetrics.New()
	if cfg.Output.MetricsAddr != "" {
		go func() {
			if err := cm.Serve(ctx, cfg.Output.MetricsAddr); err != nil {
				logger.Warn("metrics endpoint stopped", zap.String("addr", cfg.Output.MetricsAddr), zap.Error(err))
			}
		}()
	}

	prompts := chat.DefaultPrompts()
	if cfg.Chat.PromptsFile != "" {
		if prompts, err = chat.LoadPrompts(cfg.Chat.PromptsFile); err != nil {
			return err
		}
	}

	bank := dialogue.DefaultBank()
	if cfg.Chat.PhrasesFile != "" {
		if bank, err = dialogue.LoadBank(cfg.Chat.PhrasesFile); err != nil {
			return err
		}
	}

	client := newChatClient(cfg, prompts, tp, cm, logger)

	var dash *dashboard.Dashboard
	if cfg.Output.Dashboard {
		dash, err = dashboard.New(dashboardConfig(cfg), cm, cancel)
		if err != nil {
			return err
		}
		dash.Start()
	}

	r := runner.New(runner.Options{
		Client:     client,
		Prompts:    prompts,
		Bank:       bank,
		ResultsDir: cfg.ResultsDir,
		Seed:       cfg.Seed,
		Logger:     logger,
		Watch:      newWatcher(cfg, dash, cm, stdout),
	})

	suite := runner.Suite{
		Steps:      buildSteps(r, cfg),
		ResultsDir: cfg.ResultsDir,
		Logger:     logger,
	}
	result, err := suite.Run(ctx)
	if dash != nil {
		dash.Stop()
	}
	if err != nil {
		logger.Error("failed to write suite summary", zap.Error(err))
	}

	var failures []error
	for _, out := range result.Outcomes {
		if out.Err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", out.Name, out.Err))
		}
		results := evaluator.Evaluate(out.Summary)
		dir := out.Summary.ResultDir

		if cfg.Output.JSON {
			if err := output.PrintJSONReport(stdout, out.Summary); err != nil {
				return err
			}
		} else {
			output.PrintReport(stdout, out.Summary, dir)
			output.PrintThresholds(stdout, results)
		}
		if !threshold.AllPassed(results) {
			failures = append(failures, fmt.Errorf("%s: thresholds failed", out.Name))
		}

		if !cfg.Output.NoVisualize && dir != "" {
			meta := output.ReportMetadata{Model: cfg.Chat.Model, BaseURL: cfg.Chat.BaseURL, RunDir: dir}
			path, err := renderReport(dir, out.Summary, results, meta)
			if err != nil {
				logger.Warn("failed to render html report", zap.String("test", out.Name), zap.Error(err))
			} else if !cfg.Output.JSON {
				fmt.Fprintf(stdout, "HTML report:       %s\n", path)
			}
		}
	}
	if result.SummaryPath != "" && !cfg.Output.JSON {
		fmt.Fprintf(stdout, "\nSuite summary:     %s\n", result.SummaryPath)
	}

	return errors.Join(failures...)
}

// newChatClient builds the OpenAI client and wraps it in the middleware
// chain. The first middleware is the outermost.
func newChatClient(cfg config.Config, prompts chat.PromptSet, tp *tracing.Provider, cm *clientmetrics.ClientMetrics, logger *zap.Logger) chat.Client {
	httpClient := httpclient.NewClient(0, httpclient.WithTracePropagation(tp.ShouldPropagate()))
	base := chat.NewOpenAIClient(chat.OpenAIConfig{
		BaseURL:    cfg.Chat.BaseURL,
		APIKey:     cfg.Chat.ResolvedAPIKey(),
		Model:      cfg.Chat.Model,
		HTTPClient: httpClient,
		Prompts:    prompts,
		Headers:    map[string]string{"X-Title": appTitle},
	})

	mws := []chat.Middleware{
		chat.WithLogging(logger.Named("chat")),
		chat.WithTracing(tp.Tracer(), cfg.Chat.Model),
	}
	if cfg.Chat.Retries > 0 {
		mws = append(mws, chat.WithRetry(chat.DefaultRetryPolicy(cfg.Chat.Retries, cfg.Seed)))
	}
	mws = append(mws, chat.WithMetrics(cm))
	if cfg.Chat.Rate > 0 {
		mws = append(mws, chat.WithRateLimit(chat.NewLimiter(cfg.Chat.Rate)))
	}
	if cfg.Chat.Timeout > 0 {
		mws = append(mws, chat.WithTimeout(cfg.Chat.Timeout))
	}
	return chat.Wrap(base, mws...)
}

func buildSteps(r *runner.Runner, cfg config.Config) []runner.Step {
	var steps []runner.Step
	for _, mode := range cfg.SelectedModes() {
		switch mode {
		case config.ModeConcurrent:
			steps = append(steps, r.ConcurrentStep(runner.ConcurrentOptions{
				Users:              cfg.Concurrent.Users,
				Messages:           cfg.Concurrent.Messages,
				Delay:              cfg.Concurrent.Delay,
				Duration:           cfg.Concurrent.Duration,
				ConcurrentRequests: cfg.Concurrent.Requests,
				MaxInFlight:        cfg.Concurrent.MaxInFlight,
			}))
		case config.ModeResponse:
			steps = append(steps, r.ResponseStep(runner.ResponseOptions{
				Total:     cfg.Response.Requests,
				BatchSize: cfg.Response.BatchSize,
				RampUp:    cfg.Response.RampUp,
				Timeout:   cfg.Response.Timeout,
			}))
		case config.ModeLong:
			steps = append(steps, r.LongStep(runner.LongOptions{
				Dialogs:  cfg.Long.Dialogs,
				Messages: cfg.Long.Messages,
				Delay:    cfg.Long.Delay,
				Window:   cfg.Long.Window,
				SaveFull: cfg.Long.SaveFull,
			}))
		}
	}
	return steps
}

// newWatcher returns the live view hook of the runner: the dashboard when
// enabled, a progress line otherwise. JSON output gets no live view.
func newWatcher(cfg config.Config, dash *dashboard.Dashboard, cm *clientmetrics.ClientMetrics, stdout io.Writer) func(string, *metrics.Collector) func() {
	return func(test string, c *metrics.Collector) func() {
		if dash != nil {
			dash.Attach(c)
			return func() {
				snap := c.Snapshot()
				cm.SetRunProgress(test, snap.Total, snap.Errors)
			}
		}
		w := stdout
		if cfg.Output.JSON {
			w = io.Discard
		}
		progress := output.NewProgressReporter(c, progressInterval, w)
		progress.OnSnapshot = func(s metrics.Snapshot) {
			cm.SetRunProgress(test, s.Total, s.Errors)
		}
		progress.Start()
		return progress.Stop
	}
}

func dashboardConfig(cfg config.Config) dashboard.TestConfig {
	modes := make([]string, 0, len(cfg.SelectedModes()))
	for _, m := range cfg.SelectedModes() {
		modes = append(modes, string(m))
	}
	return dashboard.TestConfig{
		Model:      cfg.Chat.Model,
		BaseURL:    cfg.Chat.BaseURL,
		Modes:      modes,
		Rate:       cfg.Chat.Rate,
		Timeout:    cfg.Chat.Timeout,
		Retries:    cfg.Chat.Retries,
		ConfigFile: cfg.ConfigFile,
	}
}
