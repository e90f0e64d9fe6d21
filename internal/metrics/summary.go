package metrics

import "time"

// TimestampLayout formats run timestamps and run directory suffixes.
const TimestampLayout = "20060102_150405"

// RunSummary is the record produced once per test run.
//
// TotalRequests counts recorded latency samples, not sessions, and
// SuccessfulRequests is always TotalRequests minus the number of recorded
// errors. An error recorded without a matching sample therefore lowers the
// success count without raising the total.
type RunSummary struct {
	TestName           string          `json:"test_name"`
	Timestamp          string          `json:"timestamp"`
	StartedAt          time.Time       `json:"started_at"`
	DurationSeconds    float64         `json:"duration_seconds"`
	TotalRequests      int             `json:"total_requests"`
	SuccessfulRequests int             `json:"successful_requests"`
	FailedRequests     int             `json:"failed_requests"`
	ResponseTimes      PercentileTable `json:"response_time_stats"`
	Distribution       []Bucket        `json:"distribution,omitempty"`
	Errors             []string        `json:"errors"`
	TestData           TestData        `json:"test_data"`
	// ResultDir is where the run was persisted. It is empty when the sink
	// has no location or saving failed.
	ResultDir string `json:"result_dir,omitempty"`
}

// TestData carries the mode-specific payload of a run. Mode names the shape of
// Details; Extra holds free-form keys set through Collector.SetData.
type TestData struct {
	Mode    string         `json:"mode,omitempty"`
	Details any            `json:"details,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Bucket is one bar of the latency distribution histogram.
type Bucket struct {
	FromMs float64 `json:"from_ms"`
	ToMs   float64 `json:"to_ms"`
	Count  int64   `json:"count"`
}

// SeriesPoint is one (sequence, latency) pair of the flat time series.
type SeriesPoint struct {
	Sequence  int     `json:"request_number"`
	LatencyMs float64 `json:"response_time_ms"`
}

// SuccessRate returns the share of successful requests in [0, 1].
func (s RunSummary) SuccessRate() float64 {
	if s.TotalRequests <= 0 {
		return 0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests)
}

// Duration returns the run duration as a time.Duration.
func (s RunSummary) Duration() time.Duration {
	return time.Duration(s.DurationSeconds * float64(time.Second))
}

// Series builds the ordered time series for samples, numbered from 1.
func Series(samples []float64) []SeriesPoint {
	points := make([]SeriesPoint, len(samples))
	for i, v := range samples {
		points[i] = SeriesPoint{Sequence: i + 1, LatencyMs: round2(v)}
	}
	return points
}
