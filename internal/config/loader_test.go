package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{false, false},
		{"false", false},
		{"0", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second}, // int treated as seconds
		{1.5, 1500 * time.Millisecond},
		{" 2s ", 2 * time.Second},
		{"", 0},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDurationRejectsBareNumberString(t *testing.T) {
	if _, err := asDuration("10"); err == nil {
		t.Error("asDuration(\"10\") should require a unit")
	}
	if _, err := asDuration([]int{1}); err == nil {
		t.Error("asDuration([]int) should fail")
	}
}

func TestAsStringSlice(t *testing.T) {
	tests := []struct {
		input interface{}
		want  []string
	}{
		{nil, nil},
		{"response_time:p95 < 500", []string{"response_time:p95 < 500"}},
		{[]interface{}{"a", 1}, []string{"a", "1"}},
		{[]string{"x", "y"}, []string{"x", "y"}},
	}

	for _, tt := range tests {
		got, err := asStringSlice(tt.input)
		if err != nil {
			t.Errorf("asStringSlice(%v) error = %v", tt.input, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("asStringSlice(%v) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("asStringSlice(%v)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestAsInt64Seed(t *testing.T) {
	got, err := asInt64("9007199254740993")
	if err != nil {
		t.Fatalf("asInt64() error = %v", err)
	}
	if got != 9007199254740993 {
		t.Errorf("asInt64() = %d", got)
	}
}

func TestToStringKeyMap(t *testing.T) {
	got, err := toStringKeyMap(map[interface{}]interface{}{" Users ": 3})
	if err != nil {
		t.Fatalf("toStringKeyMap() error = %v", err)
	}
	if got["users"] != 3 {
		t.Errorf("toStringKeyMap() = %v, want lowercase trimmed key", got)
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := Default()
	settings := map[string]interface{}{
		"tests":       []interface{}{"long", "concurrent"},
		"results_dir": "out",
		"concurrent": map[string]interface{}{
			"users":         20,
			"delay":         "250ms",
			"duration":      30,
			"max_in_flight": 8,
		},
		"response": map[string]interface{}{
			"batch":   "4",
			"ramp_up": "40s",
		},
		"long": map[string]interface{}{
			"save_full": true,
			"window":    10,
		},
		"chat": map[string]interface{}{
			"model": "meta/llama",
			"rate":  2.5,
		},
		"tracing": map[string]interface{}{
			"endpoint":  "localhost:4317",
			"propagate": false,
		},
	}

	if err := applyConfigSettings(&cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if len(cfg.Modes) != 2 || cfg.Modes[0] != ModeLong || cfg.Modes[1] != ModeConcurrent {
		t.Errorf("Modes = %v, want [long concurrent]", cfg.Modes)
	}
	if cfg.ResultsDir != "out" {
		t.Errorf("ResultsDir = %q, want out", cfg.ResultsDir)
	}
	if cfg.Concurrent.Users != 20 {
		t.Errorf("Concurrent.Users = %d, want 20", cfg.Concurrent.Users)
	}
	if cfg.Concurrent.Messages != 5 {
		t.Errorf("Concurrent.Messages = %d, want default 5", cfg.Concurrent.Messages)
	}
	if cfg.Concurrent.Delay != 250*time.Millisecond {
		t.Errorf("Concurrent.Delay = %v, want 250ms", cfg.Concurrent.Delay)
	}
	if cfg.Concurrent.Duration != 30*time.Second {
		t.Errorf("Concurrent.Duration = %v, want 30s", cfg.Concurrent.Duration)
	}
	if cfg.Concurrent.MaxInFlight != 8 {
		t.Errorf("Concurrent.MaxInFlight = %d, want 8", cfg.Concurrent.MaxInFlight)
	}
	if cfg.Response.BatchSize != 4 || cfg.Response.RampUp != 40*time.Second {
		t.Errorf("Response = %+v, want batch 4 and ramp 40s", cfg.Response)
	}
	if !cfg.Long.SaveFull || cfg.Long.Window != 10 {
		t.Errorf("Long = %+v, want save_full and window 10", cfg.Long)
	}
	if cfg.Chat.Model != "meta/llama" || cfg.Chat.Rate != 2.5 {
		t.Errorf("Chat = %+v", cfg.Chat)
	}
	if cfg.Tracing.ShouldPropagate() {
		t.Errorf("ShouldPropagate() = true, want false when disabled in file")
	}
}

func TestApplyConfigSettingsRejectsBadSection(t *testing.T) {
	cfg := Default()
	err := applyConfigSettings(&cfg, map[string]interface{}{"concurrent": "ten"})
	if err == nil {
		t.Fatal("expected error for non-map section")
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := Default()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"--concurrent-users=3",
		"--concurrent-max-in-flight=4",
		"--response-ramp-up=1m",
		"--long-save-full",
		"--model=other/model",
		"--rate=1.5",
		"--response",
		"--long",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(&cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.Concurrent.Users != 3 {
		t.Errorf("Concurrent.Users = %d, want 3", cfg.Concurrent.Users)
	}
	if cfg.Concurrent.MaxInFlight != 4 || cfg.Concurrent.Requests != 5 {
		t.Errorf("Concurrent max in flight/requests = %d/%d, want 4/5", cfg.Concurrent.MaxInFlight, cfg.Concurrent.Requests)
	}
	if cfg.Response.RampUp != time.Minute {
		t.Errorf("Response.RampUp = %v, want 1m", cfg.Response.RampUp)
	}
	if !cfg.Long.SaveFull {
		t.Errorf("Long.SaveFull = false, want true")
	}
	if cfg.Chat.Model != "other/model" {
		t.Errorf("Chat.Model = %q, want other/model", cfg.Chat.Model)
	}
	if cfg.Chat.Rate != 1.5 {
		t.Errorf("Chat.Rate = %v, want 1.5", cfg.Chat.Rate)
	}
	if len(cfg.Modes) != 2 || cfg.Modes[0] != ModeResponse || cfg.Modes[1] != ModeLong {
		t.Errorf("Modes = %v, want [response long]", cfg.Modes)
	}
}

func TestAllFlagClearsSelection(t *testing.T) {
	cfg := Default()
	cfg.Modes = []Mode{ModeLong}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)
	if err := fs.Parse([]string{"--all", "--long"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := applyFlagOverrides(&cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}
	if cfg.Modes != nil {
		t.Errorf("Modes = %v, want nil", cfg.Modes)
	}
}

func TestLoader_Load(t *testing.T) {
	loader := NewLoader()
	args := []string{
		"--concurrent",
		"--concurrent-users=2",
		"--base-url=http://localhost:8080/v1/",
		"--phrases=phrases.csv",
	}

	cfg, err := loader.Load(args)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Concurrent.Users != 2 {
		t.Errorf("Concurrent.Users = %d, want 2", cfg.Concurrent.Users)
	}
	if cfg.Chat.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("Chat.BaseURL = %q, want trailing slash trimmed", cfg.Chat.BaseURL)
	}
	if cfg.Chat.PhrasesFile != "phrases.csv" {
		t.Errorf("Chat.PhrasesFile = %q, want phrases.csv", cfg.Chat.PhrasesFile)
	}
	if got := cfg.SelectedModes(); len(got) != 1 || got[0] != ModeConcurrent {
		t.Errorf("SelectedModes() = %v, want [concurrent]", got)
	}
}
