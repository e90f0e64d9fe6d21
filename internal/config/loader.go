package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	return l.FromFlags(flagSet)
}

// FromFlags builds a Config from an already parsed flag set registered with
// RegisterFlags. Values come from defaults, then the --config file, then flags.
func (Loader) FromFlags(flagSet *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if f := flagSet.Lookup("config"); f != nil {
		configPath = strings.TrimSpace(f.Value.String())
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(&cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(&cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Chat.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Chat.BaseURL), "/")
	cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(cfg.Tracing.Protocol))
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	return &cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "tests", "modes"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("tests: %w", err)
		}
		cfg.Modes = nil
		for _, v := range vals {
			mode := Mode(strings.ToLower(strings.TrimSpace(v)))
			if mode == "all" {
				cfg.Modes = nil
				break
			}
			cfg.Modes = append(cfg.Modes, mode)
		}
	}

	if raw, ok := lookupSetting(settings, "resultsdir", "results_dir", "results-dir"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("resultsDir: %w", err)
		}
		cfg.ResultsDir = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = val
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	sections := []struct {
		key   string
		apply func(map[string]interface{}) error
	}{
		{"concurrent", func(m map[string]interface{}) error { return applyConcurrent(&cfg.Concurrent, m) }},
		{"response", func(m map[string]interface{}) error { return applyResponse(&cfg.Response, m) }},
		{"long", func(m map[string]interface{}) error { return applyLong(&cfg.Long, m) }},
		{"chat", func(m map[string]interface{}) error { return applyChat(&cfg.Chat, m) }},
		{"output", func(m map[string]interface{}) error { return applyOutput(&cfg.Output, m) }},
		{"tracing", func(m map[string]interface{}) error { return applyTracing(&cfg.Tracing, m) }},
		{"log", func(m map[string]interface{}) error { return applyLog(&cfg.Log, m) }},
	}
	for _, s := range sections {
		raw, ok := lookupSetting(settings, s.key)
		if !ok || raw == nil {
			continue
		}
		entry, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.key, err)
		}
		if err := s.apply(entry); err != nil {
			return fmt.Errorf("%s: %w", s.key, err)
		}
	}
	return nil
}

func setInt(settings map[string]interface{}, dst *int, keys ...string) error {
	raw, ok := lookupSetting(settings, keys...)
	if !ok {
		return nil
	}
	val, err := asInt(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = val
	return nil
}

func setDuration(settings map[string]interface{}, dst *time.Duration, keys ...string) error {
	raw, ok := lookupSetting(settings, keys...)
	if !ok {
		return nil
	}
	val, err := asDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = val
	return nil
}

func setString(settings map[string]interface{}, dst *string, keys ...string) error {
	raw, ok := lookupSetting(settings, keys...)
	if !ok {
		return nil
	}
	val, err := asString(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = strings.TrimSpace(val)
	return nil
}

func setBool(settings map[string]interface{}, dst *bool, keys ...string) error {
	raw, ok := lookupSetting(settings, keys...)
	if !ok {
		return nil
	}
	val, err := asBool(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = val
	return nil
}

func setFloat(settings map[string]interface{}, dst *float64, keys ...string) error {
	raw, ok := lookupSetting(settings, keys...)
	if !ok {
		return nil
	}
	val, err := asFloat64(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = val
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func applyConcurrent(cc *ConcurrentConfig, s map[string]interface{}) error {
	return firstErr(
		setInt(s, &cc.Users, "users"),
		setInt(s, &cc.Messages, "messages"),
		setInt(s, &cc.Requests, "requests"),
		setInt(s, &cc.MaxInFlight, "max_in_flight"),
		setDuration(s, &cc.Delay, "delay"),
		setDuration(s, &cc.Duration, "duration"),
	)
}

func applyResponse(rc *ResponseConfig, s map[string]interface{}) error {
	return firstErr(
		setInt(s, &rc.Requests, "requests"),
		setInt(s, &rc.BatchSize, "batch", "batch_size"),
		setDuration(s, &rc.RampUp, "ramp_up", "rampup", "ramp-up"),
		setDuration(s, &rc.Timeout, "timeout"),
	)
}

func applyLong(lc *LongConfig, s map[string]interface{}) error {
	return firstErr(
		setInt(s, &lc.Dialogs, "dialogs"),
		setInt(s, &lc.Messages, "messages"),
		setDuration(s, &lc.Delay, "delay"),
		setBool(s, &lc.SaveFull, "save_full", "savefull", "save-full"),
		setInt(s, &lc.Window, "window"),
	)
}

func applyChat(cc *ChatConfig, s map[string]interface{}) error {
	return firstErr(
		setString(s, &cc.BaseURL, "base_url", "baseurl", "base-url"),
		setString(s, &cc.Model, "model"),
		setString(s, &cc.APIKey, "api_key", "apikey", "api-key"),
		setString(s, &cc.PromptsFile, "prompts"),
		setString(s, &cc.PhrasesFile, "phrases"),
		setDuration(s, &cc.Timeout, "timeout"),
		setFloat(s, &cc.Rate, "rate"),
		setInt(s, &cc.Retries, "retries"),
	)
}

func applyOutput(oc *OutputConfig, s map[string]interface{}) error {
	return firstErr(
		setBool(s, &oc.JSON, "json_output", "jsonoutput", "json"),
		setBool(s, &oc.Dashboard, "dashboard"),
		setBool(s, &oc.NoVisualize, "no_visualize", "novisualize"),
		setString(s, &oc.MetricsAddr, "metrics_addr", "metricsaddr"),
	)
}

func applyTracing(tc *TracingConfig, s map[string]interface{}) error {
	if raw, ok := lookupSetting(s, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		tc.Propagate = &val
	}
	return firstErr(
		setString(s, &tc.Endpoint, "endpoint"),
		setString(s, &tc.Protocol, "protocol"),
		setString(s, &tc.ServiceName, "service_name", "servicename"),
		setFloat(s, &tc.SampleRate, "sample_rate", "samplerate"),
		setBool(s, &tc.Insecure, "insecure"),
	)
}

func applyLog(lc *LogConfig, s map[string]interface{}) error {
	return firstErr(
		setString(s, &lc.Level, "level"),
		setString(s, &lc.Format, "format"),
		setString(s, &lc.File, "file"),
		setInt(s, &lc.MaxSizeMB, "max_size", "maxsize"),
		setInt(s, &lc.MaxBackups, "max_backups", "maxbackups"),
		setInt(s, &lc.MaxAgeDays, "max_age", "maxage"),
	)
}
