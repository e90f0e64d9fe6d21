package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Mode names one of the load test scenarios.
type Mode string

const (
	ModeConcurrent Mode = "concurrent"
	ModeResponse   Mode = "response"
	ModeLong       Mode = "long"
)

// AllModes lists the scenarios in the order the suite runs them.
var AllModes = []Mode{ModeConcurrent, ModeResponse, ModeLong}

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "google/gemma-3-4b-it:free"
	// APIKeyEnv is consulted when no API key is configured.
	APIKeyEnv = "OPENROUTER_API_KEY"
)

type Config struct {
	Modes      []Mode           `mapstructure:"tests"`
	ResultsDir string           `mapstructure:"results_dir"`
	Seed       int64            `mapstructure:"seed"`
	ConfigFile string           `mapstructure:"-"`
	Concurrent ConcurrentConfig `mapstructure:"concurrent"`
	Response   ResponseConfig   `mapstructure:"response"`
	Long       LongConfig       `mapstructure:"long"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Output     OutputConfig     `mapstructure:"output"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Log        LogConfig        `mapstructure:"log"`
	Thresholds []string         `mapstructure:"thresholds"`
}

// ConcurrentConfig tunes the concurrent dialogue scenario.
type ConcurrentConfig struct {
	Users    int `mapstructure:"users"`
	Messages int `mapstructure:"messages"`
	// Requests is recorded with the results; it does not throttle sessions.
	Requests    int           `mapstructure:"requests"`
	MaxInFlight int           `mapstructure:"max_in_flight"` // session cap, 0 = all at once
	Delay       time.Duration `mapstructure:"delay"`
	Duration    time.Duration `mapstructure:"duration"` // hard deadline, 0 = none
}

// ResponseConfig tunes the ramped response time scenario.
type ResponseConfig struct {
	Requests  int           `mapstructure:"requests"`
	BatchSize int           `mapstructure:"batch"`
	RampUp    time.Duration `mapstructure:"ramp_up"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LongConfig tunes the long dialogue scenario.
type LongConfig struct {
	Dialogs  int           `mapstructure:"dialogs"`
	Messages int           `mapstructure:"messages"`
	Delay    time.Duration `mapstructure:"delay"`
	SaveFull bool          `mapstructure:"save_full"`
	Window   int           `mapstructure:"window"`
}

// ChatConfig describes the chat completion endpoint.
type ChatConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	PromptsFile string        `mapstructure:"prompts"`
	PhrasesFile string        `mapstructure:"phrases"` // CSV or JSON phrase bank
	Timeout     time.Duration `mapstructure:"timeout"` // per call, 0 = none
	Rate        float64       `mapstructure:"rate"`    // calls per second, 0 = unlimited
	Retries     int           `mapstructure:"retries"`
}

// OutputConfig controls reporting.
type OutputConfig struct {
	JSON        bool   `mapstructure:"json_output"`
	Dashboard   bool   `mapstructure:"dashboard"`
	NoVisualize bool   `mapstructure:"no_visualize"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// TracingConfig configures OTLP span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint is configured, either here or
// through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether trace context should be injected into
// outgoing requests. It defaults to true when tracing is enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// LogConfig configures the zap logger and its rotated file output.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		ResultsDir: "result_tests",
		Concurrent: ConcurrentConfig{
			Users:    10,
			Messages: 5,
			Requests: 5,
			Delay:    time.Second,
			Duration: 120 * time.Second,
		},
		Response: ResponseConfig{
			Requests:  100,
			BatchSize: 10,
			RampUp:    30 * time.Second,
			Timeout:   60 * time.Second,
		},
		Long: LongConfig{
			Dialogs:  3,
			Messages: 100,
			Delay:    500 * time.Millisecond,
			Window:   20,
		},
		Chat: ChatConfig{
			BaseURL: DefaultBaseURL,
			Model:   DefaultModel,
			Timeout: 60 * time.Second,
		},
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			File:       "load_test.log",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// SelectedModes returns the scenarios to run. No explicit selection means all.
func (c Config) SelectedModes() []Mode {
	if len(c.Modes) == 0 {
		return append([]Mode(nil), AllModes...)
	}
	selected := make(map[Mode]bool, len(c.Modes))
	for _, m := range c.Modes {
		selected[m] = true
	}
	var out []Mode
	for _, m := range AllModes {
		if selected[m] {
			out = append(out, m)
		}
	}
	return out
}

// ResolvedAPIKey returns the configured API key or the environment fallback.
func (c ChatConfig) ResolvedAPIKey() string {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv(APIKeyEnv))
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	for _, m := range c.Modes {
		switch m {
		case ModeConcurrent, ModeResponse, ModeLong:
		default:
			issues = append(issues, fmt.Sprintf("tests: unknown test %q (use concurrent, response or long)", m))
		}
	}

	if strings.TrimSpace(c.ResultsDir) == "" {
		issues = append(issues, "results_dir is required")
	}

	selected := make(map[Mode]bool)
	for _, m := range c.SelectedModes() {
		selected[m] = true
	}
	if selected[ModeConcurrent] {
		issues = append(issues, validateConcurrent(c.Concurrent)...)
	}
	if selected[ModeResponse] {
		issues = append(issues, validateResponse(c.Response)...)
	}
	if selected[ModeLong] {
		issues = append(issues, validateLong(c.Long)...)
	}
	issues = append(issues, validateChat(c.Chat)...)
	issues = append(issues, validateTracing(c.Tracing)...)
	issues = append(issues, validateLog(c.Log)...)

	if c.Concurrent.Users > 500 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High user count configured (%d sessions). Ensure your API quota allows it.", c.Concurrent.Users))
	}
	if c.Chat.ResolvedAPIKey() == "" {
		warnings = append(warnings, fmt.Sprintf("WARNING: No API key configured; set --api-key or %s.", APIKeyEnv))
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateConcurrent(cc ConcurrentConfig) []string {
	var issues []string
	if cc.Users < 1 {
		issues = append(issues, "concurrent: users must be >= 1")
	}
	if cc.Messages < 1 {
		issues = append(issues, "concurrent: messages must be >= 1")
	}
	if cc.Requests < 0 {
		issues = append(issues, "concurrent: requests must be >= 0")
	}
	if cc.MaxInFlight < 0 {
		issues = append(issues, "concurrent: max_in_flight must be >= 0")
	}
	if cc.Delay < 0 {
		issues = append(issues, "concurrent: delay must be >= 0")
	}
	if cc.Duration < 0 {
		issues = append(issues, "concurrent: duration must be >= 0")
	}
	return issues
}

func validateResponse(rc ResponseConfig) []string {
	var issues []string
	if rc.Requests < 1 {
		issues = append(issues, "response: requests must be >= 1")
	}
	if rc.BatchSize < 1 {
		issues = append(issues, "response: batch must be >= 1")
	}
	if rc.RampUp < 0 {
		issues = append(issues, "response: ramp_up must be >= 0")
	}
	if rc.Timeout < 0 {
		issues = append(issues, "response: timeout must be >= 0")
	}
	return issues
}

func validateLong(lc LongConfig) []string {
	var issues []string
	if lc.Dialogs < 1 {
		issues = append(issues, "long: dialogs must be >= 1")
	}
	if lc.Messages < 1 {
		issues = append(issues, "long: messages must be >= 1")
	}
	if lc.Delay < 0 {
		issues = append(issues, "long: delay must be >= 0")
	}
	if lc.Window < 0 {
		issues = append(issues, "long: window must be >= 0")
	}
	return issues
}

func validateChat(cc ChatConfig) []string {
	var issues []string
	if strings.TrimSpace(cc.BaseURL) == "" {
		issues = append(issues, "chat: base_url is required")
	}
	if strings.TrimSpace(cc.Model) == "" {
		issues = append(issues, "chat: model is required")
	}
	if cc.Timeout < 0 {
		issues = append(issues, "chat: timeout must be >= 0")
	}
	if cc.Rate < 0 {
		issues = append(issues, "chat: rate must be >= 0")
	}
	if cc.Retries < 0 {
		issues = append(issues, "chat: retries must be >= 0")
	}
	return issues
}

func validateTracing(tc TracingConfig) []string {
	var issues []string
	switch strings.ToLower(tc.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", tc.Protocol))
	}
	if tc.SampleRate < 0 || tc.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", tc.SampleRate))
	}
	return issues
}

func validateLog(lc LogConfig) []string {
	var issues []string
	switch strings.ToLower(lc.Format) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log: format must be 'console' or 'json', got %q", lc.Format))
	}
	switch strings.ToLower(lc.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log: unknown level %q", lc.Level))
	}
	return issues
}
