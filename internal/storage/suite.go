package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/dialogfire/internal/metrics"
)

// SuiteEntry is one line of the suite summary.
type SuiteEntry struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	FailedRequests     int     `json:"failed_requests"`
	AvgResponseTimeMs  float64 `json:"avg_response_time_ms"`
	P95ResponseTimeMs  float64 `json:"p95_response_time_ms"`
	Error              string  `json:"error,omitempty"`
}

// SuiteSummary aggregates the outcome of every mode run by the suite.
type SuiteSummary struct {
	Timestamp     string                `json:"timestamp"`
	TotalDuration float64               `json:"total_duration"`
	TestsRun      []string              `json:"tests_run"`
	Tests         map[string]SuiteEntry `json:"results_summary"`
}

// EntryFromSummary condenses a run summary.
func EntryFromSummary(s metrics.RunSummary) SuiteEntry {
	return SuiteEntry{
		TotalRequests:      s.TotalRequests,
		SuccessfulRequests: s.SuccessfulRequests,
		FailedRequests:     s.FailedRequests,
		AvgResponseTimeMs:  s.ResponseTimes.Avg,
		P95ResponseTimeMs:  s.ResponseTimes.P95,
	}
}

// WriteSuiteSummary writes <root>/summary_<timestamp>.json while holding an
// exclusive lock on the results root so parallel suites do not interleave.
func WriteSuiteSummary(root string, now time.Time, summary SuiteSummary) (string, error) {
	if err := os.MkdirAll(root, dirPermissions); err != nil {
		return "", fmt.Errorf("create results root: %w", err)
	}
	lock := flock.New(filepath.Join(root, ".summary.lock"))
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("lock results root: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if summary.Timestamp == "" {
		summary.Timestamp = now.Format(metrics.TimestampLayout)
	}
	path := filepath.Join(root, "summary_"+now.Format(metrics.TimestampLayout)+".json")
	if err := writeJSON(path, summary); err != nil {
		return "", err
	}
	return path, nil
}
