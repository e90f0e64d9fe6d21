package threshold

import (
	"strings"
	"testing"

	"github.com/torosent/dialogfire/internal/metrics"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Threshold
		wantError bool
	}{
		{
			name:  "p95 latency",
			input: "response_time:p95 < 5000",
			want:  Threshold{Metric: "response_time", Aggregate: "p95", Operator: "<", Value: 5000, Raw: "response_time:p95 < 5000"},
		},
		{
			name:  "failure rate",
			input: "requests_failed:rate < 0.05",
			want:  Threshold{Metric: "requests_failed", Aggregate: "rate", Operator: "<", Value: 0.05, Raw: "requests_failed:rate < 0.05"},
		},
		{
			name:  "request rate with >=",
			input: "  requests:rate >= 2  ",
			want:  Threshold{Metric: "requests", Aggregate: "rate", Operator: ">=", Value: 2, Raw: "requests:rate >= 2"},
		},
		{
			name:  "no spaces",
			input: "response_time:max<=60000",
			want:  Threshold{Metric: "response_time", Aggregate: "max", Operator: "<=", Value: 60000, Raw: "response_time:max<=60000"},
		},
		{name: "empty string", input: "", wantError: true},
		{name: "missing aggregate", input: "response_time < 5", wantError: true},
		{name: "unknown metric", input: "http_req_duration:p95 < 500", wantError: true},
		{name: "unknown aggregate", input: "response_time:p42 < 500", wantError: true},
		{name: "unknown operator", input: "response_time:p95 != 500", wantError: true},
		{name: "bad value", input: "response_time:p95 < 1.2.3", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantError {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %+v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseMultiple(t *testing.T) {
	got, err := ParseMultiple([]string{"response_time:p95 < 5000", "requests_failed:count == 0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d thresholds, want 2", len(got))
	}

	_, err = ParseMultiple([]string{"response_time:p95 < 5000", "bogus", "requests:p95 < 1x"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "threshold[1]") || !strings.Contains(err.Error(), "threshold[2]") {
		t.Errorf("error should name every bad entry: %v", err)
	}

	none, err := ParseMultiple(nil)
	if err != nil || none != nil {
		t.Errorf("ParseMultiple(nil) = %v, %v", none, err)
	}
}

func TestEvaluate(t *testing.T) {
	summary := metrics.RunSummary{
		DurationSeconds:    10,
		TotalRequests:      50,
		SuccessfulRequests: 45,
		FailedRequests:     5,
		ResponseTimes: metrics.PercentileTable{
			Min: 100, Avg: 900, P50: 800, P90: 1500, P95: 2000, P99: 3000, Max: 4000,
		},
	}

	tests := []struct {
		raw    string
		actual float64
		pass   bool
	}{
		{"response_time:p95 < 2500", 2000, true},
		{"response_time:p99 < 2500", 3000, false},
		{"response_time:avg <= 900", 900, true},
		{"response_time:min > 50", 100, true},
		{"response_time:p50 == 800", 800, true},
		{"requests_failed:rate < 0.05", 0.1, false},
		{"requests_failed:count <= 5", 5, true},
		{"requests:count >= 50", 50, true},
		{"requests:rate > 4", 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			th, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			results := NewEvaluator([]Threshold{th}).Evaluate(summary)
			if len(results) != 1 {
				t.Fatalf("got %d results", len(results))
			}
			r := results[0]
			if r.Actual != tt.actual {
				t.Errorf("actual = %v, want %v", r.Actual, tt.actual)
			}
			if r.Pass != tt.pass {
				t.Errorf("pass = %v, want %v (%s)", r.Pass, tt.pass, r.Message)
			}
		})
	}
}

func TestEvaluateUnsupportedCombination(t *testing.T) {
	th, err := Parse("requests_failed:p95 < 1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	results := NewEvaluator([]Threshold{th}).Evaluate(metrics.RunSummary{})
	if results[0].Pass || !strings.HasPrefix(results[0].Message, "error:") {
		t.Errorf("unexpected result %+v", results[0])
	}
	if AllPassed(results) {
		t.Error("AllPassed should be false")
	}
}

func TestFailureRateWithoutSamples(t *testing.T) {
	th, _ := Parse("requests_failed:rate < 0.5")
	results := NewEvaluator([]Threshold{th}).Evaluate(metrics.RunSummary{FailedRequests: 3})
	if results[0].Actual != 1 || results[0].Pass {
		t.Errorf("unexpected result %+v", results[0])
	}
	if got := NewEvaluator(nil).Evaluate(metrics.RunSummary{}); got != nil {
		t.Errorf("no thresholds should yield nil, got %v", got)
	}
	if !AllPassed(nil) {
		t.Error("AllPassed(nil) should be true")
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		actual   float64
		op       string
		expected float64
		want     bool
	}{
		{1, "<", 2, true},
		{2, "<", 2, false},
		{2, "<=", 2, true},
		{3, ">", 2, true},
		{2, ">=", 2.0000000001, true},
		{0.1 + 0.2, "==", 0.3, true},
		{1, "!=", 2, false},
	}
	for _, tt := range tests {
		if got := compareValues(tt.actual, tt.op, tt.expected); got != tt.want {
			t.Errorf("compareValues(%v %s %v) = %v, want %v", tt.actual, tt.op, tt.expected, got, tt.want)
		}
	}
}
