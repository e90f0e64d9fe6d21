package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dialogfire",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	def := Default()

	// Test selection
	flags.Bool("all", false, "Run all tests (default when no test is selected)")
	flags.Bool("concurrent", false, "Run the concurrent dialogues test")
	flags.Bool("response", false, "Run the response time test")
	flags.Bool("long", false, "Run the long dialogues test")

	// Concurrent dialogues
	flags.Int("concurrent-users", def.Concurrent.Users, "Number of simulated users")
	flags.Int("concurrent-messages", def.Concurrent.Messages, "Messages per dialogue")
	flags.Int("concurrent-requests", def.Concurrent.Requests, "Concurrent requests recorded with the results")
	flags.Int("concurrent-max-in-flight", def.Concurrent.MaxInFlight, "Cap on dialogues running at once (0 means all at once)")
	flags.Duration("concurrent-delay", def.Concurrent.Delay, "Delay between messages of one dialogue")
	flags.Duration("concurrent-duration", def.Concurrent.Duration, "Hard deadline for the whole test (0 means none)")

	// Response time
	flags.Int("response-requests", def.Response.Requests, "Total number of requests")
	flags.Int("response-batch", def.Response.BatchSize, "Requests per batch")
	flags.Duration("response-ramp-up", def.Response.RampUp, "Window over which batches are released")
	flags.Duration("response-timeout", def.Response.Timeout, "Per-request timeout")

	// Long dialogues
	flags.Int("long-dialogs", def.Long.Dialogs, "Number of long dialogues")
	flags.Int("long-messages", def.Long.Messages, "Messages per dialogue")
	flags.Duration("long-delay", def.Long.Delay, "Delay between messages of one dialogue")
	flags.Int("long-window", def.Long.Window, "Most recent messages sent as context (0 means all)")
	flags.Bool("long-save-full", false, "Save the full transcript of every dialogue")

	// Chat endpoint
	flags.String("base-url", def.Chat.BaseURL, "OpenAI compatible API base URL")
	flags.String("model", def.Chat.Model, "Model name")
	flags.String("api-key", "", "API key (defaults to $"+APIKeyEnv+")")
	flags.String("prompts", "", "YAML file with per-category system prompts")
	flags.String("phrases", "", "CSV or JSON file with per-category user phrases")
	flags.Duration("timeout", def.Chat.Timeout, "Per-call timeout for dialogue tests (0 means none)")
	flags.Float64("rate", 0, "Chat calls per second limit (0 means unlimited)")
	flags.Int("retries", 0, "Number of retries per chat call")
	flags.Int64("seed", 0, "Random seed for phrase generation (0 means time based)")

	// Output flags
	flags.String("results-dir", def.ResultsDir, "Directory receiving run results")
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.Bool("no-visualize", false, "Skip the HTML report")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Logging
	flags.String("log-level", def.Log.Level, "Log level: debug, info, warn or error")
	flags.String("log-format", def.Log.Format, "Log format: console or json")
	flags.String("log-file", def.Log.File, "Log file name inside the results directory (empty disables)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", def.Tracing.Protocol, "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "Service name reported in spans")
	flags.Float64("tracing-sample-rate", def.Tracing.SampleRate, "Trace sample rate between 0 and 1")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'response_time:p95 < 5000')")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if err := applyModeFlags(cfg, fs); err != nil {
		return err
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"concurrent-users", &cfg.Concurrent.Users},
		{"concurrent-messages", &cfg.Concurrent.Messages},
		{"concurrent-requests", &cfg.Concurrent.Requests},
		{"concurrent-max-in-flight", &cfg.Concurrent.MaxInFlight},
		{"response-requests", &cfg.Response.Requests},
		{"response-batch", &cfg.Response.BatchSize},
		{"long-dialogs", &cfg.Long.Dialogs},
		{"long-messages", &cfg.Long.Messages},
		{"long-window", &cfg.Long.Window},
		{"retries", &cfg.Chat.Retries},
	}
	for _, f := range ints {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetInt(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"concurrent-delay", &cfg.Concurrent.Delay},
		{"concurrent-duration", &cfg.Concurrent.Duration},
		{"response-ramp-up", &cfg.Response.RampUp},
		{"response-timeout", &cfg.Response.Timeout},
		{"long-delay", &cfg.Long.Delay},
		{"timeout", &cfg.Chat.Timeout},
	}
	for _, f := range durations {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetDuration(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"base-url", &cfg.Chat.BaseURL},
		{"model", &cfg.Chat.Model},
		{"api-key", &cfg.Chat.APIKey},
		{"prompts", &cfg.Chat.PromptsFile},
		{"phrases", &cfg.Chat.PhrasesFile},
		{"results-dir", &cfg.ResultsDir},
		{"metrics-addr", &cfg.Output.MetricsAddr},
		{"log-level", &cfg.Log.Level},
		{"log-format", &cfg.Log.Format},
		{"log-file", &cfg.Log.File},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
	}
	for _, f := range strs {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(val)
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"long-save-full", &cfg.Long.SaveFull},
		{"json-output", &cfg.Output.JSON},
		{"dashboard", &cfg.Output.Dashboard},
		{"no-visualize", &cfg.Output.NoVisualize},
		{"tracing-insecure", &cfg.Tracing.Insecure},
	}
	for _, f := range bools {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetBool(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	if fs.Changed("rate") {
		val, err := fs.GetFloat64("rate")
		if err != nil {
			return err
		}
		cfg.Chat.Rate = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	return nil
}

// applyModeFlags turns the test selection flags into cfg.Modes. Selecting
// modes on the command line replaces any selection from the config file, and
// --all clears it.
func applyModeFlags(cfg *Config, fs *pflag.FlagSet) error {
	all, err := fs.GetBool("all")
	if err != nil {
		return err
	}
	if all {
		cfg.Modes = nil
		return nil
	}

	var modes []Mode
	for _, m := range AllModes {
		val, err := fs.GetBool(string(m))
		if err != nil {
			return err
		}
		if val {
			modes = append(modes, m)
		}
	}
	if len(modes) > 0 {
		cfg.Modes = modes
	}
	return nil
}
