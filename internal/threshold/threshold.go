// Package threshold evaluates pass/fail assertions against run summaries.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/dialogfire/internal/metrics"
)

// Supported metric names.
const (
	MetricResponseTime = "response_time"
	MetricFailed       = "requests_failed"
	MetricRequests     = "requests"
)

var (
	pattern          = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)
	supportedMetrics = []string{MetricResponseTime, MetricFailed, MetricRequests}
	aggregates       = []string{"p50", "p90", "p95", "p99", "avg", "min", "max", "rate", "count"}
	operators        = []string{"<", "<=", ">", ">=", "=="}
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "response_time", "requests_failed"
	Aggregate string  // e.g., "p95", "p99", "avg", "max", "rate"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against run summaries.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the summary.
func (e *Evaluator) Evaluate(summary metrics.RunSummary) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluateOne(t, summary))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluateOne(t Threshold, summary metrics.RunSummary) Result {
	actual, err := extractMetricValue(t, summary)
	if err != nil {
		return Result{
			Threshold: t,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value),
	}
}

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "response_time:p95 < 5000"      (latency percentile in ms)
// - "response_time:avg < 2000"      (average latency in ms)
// - "response_time:max < 60000"     (max latency in ms)
// - "requests_failed:rate < 0.05"   (failure rate as decimal)
// - "requests_failed:count < 10"    (failure count)
// - "requests:rate > 1"             (samples per second)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := pattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'response_time:p95 < 5000')", s)
	}
	metric, aggregate, operator, valueStr := matches[1], matches[2], matches[3], matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}
	if !slices.Contains(supportedMetrics, metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s)", metric, strings.Join(supportedMetrics, ", "))
	}
	if !slices.Contains(aggregates, aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: %s)", aggregate, strings.Join(aggregates, ", "))
	}
	if !slices.Contains(operators, operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: %s)", operator, strings.Join(operators, ", "))
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errs []string
	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errs, "; "))
	}
	return result, nil
}

func extractMetricValue(t Threshold, summary metrics.RunSummary) (float64, error) {
	switch t.Metric {
	case MetricResponseTime:
		return extractLatencyMetric(t.Aggregate, summary.ResponseTimes)
	case MetricFailed:
		return extractFailureMetric(t.Aggregate, summary)
	case MetricRequests:
		return extractRequestMetric(t.Aggregate, summary)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractLatencyMetric(aggregate string, table metrics.PercentileTable) (float64, error) {
	switch aggregate {
	case "p50":
		return table.P50, nil
	case "p90":
		return table.P90, nil
	case "p95":
		return table.P95, nil
	case "p99":
		return table.P99, nil
	case "avg":
		return table.Avg, nil
	case "min":
		return table.Min, nil
	case "max":
		return table.Max, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s", aggregate, MetricResponseTime)
	}
}

// extractFailureMetric reads the failure count or rate. The rate is relative
// to recorded samples and is 1 when errors were recorded without samples.
func extractFailureMetric(aggregate string, summary metrics.RunSummary) (float64, error) {
	switch aggregate {
	case "count":
		return float64(summary.FailedRequests), nil
	case "rate":
		if summary.TotalRequests == 0 {
			if summary.FailedRequests > 0 {
				return 1, nil
			}
			return 0, nil
		}
		return float64(summary.FailedRequests) / float64(summary.TotalRequests), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s (use 'count' or 'rate')", aggregate, MetricFailed)
	}
}

func extractRequestMetric(aggregate string, summary metrics.RunSummary) (float64, error) {
	switch aggregate {
	case "count":
		return float64(summary.TotalRequests), nil
	case "rate":
		if summary.DurationSeconds <= 0 {
			return 0, nil
		}
		return float64(summary.TotalRequests) / summary.DurationSeconds, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s (use 'count' or 'rate')", aggregate, MetricRequests)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
