package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/torosent/dialogfire/internal/metrics"
	"github.com/torosent/dialogfire/internal/runner"
	"github.com/torosent/dialogfire/internal/storage"
)

func TestSuiteContinuesAfterFailure(t *testing.T) {
	root := t.TempDir()
	var order []string
	step := func(name string, err error) runner.Step {
		return runner.Step{Name: name, Run: func(context.Context) (metrics.RunSummary, error) {
			order = append(order, name)
			return metrics.RunSummary{
				TestName:           name,
				TotalRequests:      10,
				SuccessfulRequests: 8,
				FailedRequests:     2,
				ResponseTimes:      metrics.PercentileTable{Avg: 120, P95: 250},
			}, err
		}}
	}
	suite := runner.Suite{
		Steps: []runner.Step{
			step(runner.TestConcurrent, nil),
			step(runner.TestResponse, errors.New("disk full")),
			step(runner.TestLong, nil),
		},
		ResultsDir: root,
		Now:        func() time.Time { return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC) },
	}

	result, err := suite.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("ran %v, want all three steps", order)
	}
	if !result.Failed() {
		t.Error("expected the suite to report a failure")
	}
	if want := filepath.Join(root, "summary_20250314_092653.json"); result.SummaryPath != want {
		t.Errorf("SummaryPath = %q, want %q", result.SummaryPath, want)
	}

	data, err := os.ReadFile(result.SummaryPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var summary storage.SuiteSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary.TestsRun) != 3 || summary.TestsRun[1] != runner.TestResponse {
		t.Errorf("tests_run = %v", summary.TestsRun)
	}
	entry := summary.Tests[runner.TestConcurrent]
	if entry.TotalRequests != 10 || entry.FailedRequests != 2 || entry.P95ResponseTimeMs != 250 {
		t.Errorf("concurrent entry = %+v", entry)
	}
	if summary.Tests[runner.TestResponse].Error != "disk full" {
		t.Errorf("response entry = %+v", summary.Tests[runner.TestResponse])
	}
}

func TestSuiteStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := 0
	suite := runner.Suite{
		ResultsDir: t.TempDir(),
		Steps: []runner.Step{
			{Name: "first", Run: func(context.Context) (metrics.RunSummary, error) {
				ran++
				cancel()
				return metrics.RunSummary{}, nil
			}},
			{Name: "second", Run: func(context.Context) (metrics.RunSummary, error) {
				ran++
				return metrics.RunSummary{}, nil
			}},
		},
	}
	result, err := suite.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ran != 1 || len(result.Outcomes) != 1 {
		t.Fatalf("ran %d steps, outcomes %d", ran, len(result.Outcomes))
	}
}

func TestRunnerSteps(t *testing.T) {
	r := runner.New(runner.Options{Client: &fakeClient{}, ResultsDir: t.TempDir()})
	steps := []runner.Step{
		r.ConcurrentStep(runner.ConcurrentOptions{Users: 1, Messages: 1}),
		r.ResponseStep(runner.ResponseOptions{Total: 2, BatchSize: 2}),
		r.LongStep(runner.LongOptions{Dialogs: 1, Messages: 2}),
	}
	want := []string{runner.TestConcurrent, runner.TestResponse, runner.TestLong}
	for i, s := range steps {
		if s.Name != want[i] {
			t.Errorf("step %d name = %q, want %q", i, s.Name, want[i])
		}
		summary, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("%s: %v", s.Name, err)
		}
		if summary.TestName != want[i] || summary.TotalRequests == 0 {
			t.Errorf("%s summary = %+v", s.Name, summary)
		}
	}
}
