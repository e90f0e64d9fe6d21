package runner

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/dialogfire/internal/metrics"
	"github.com/torosent/dialogfire/internal/storage"
)

// Step is one test of a suite.
type Step struct {
	Name string
	Run  func(ctx context.Context) (metrics.RunSummary, error)
}

// ConcurrentStep wraps RunConcurrent as a suite step.
func (r *Runner) ConcurrentStep(opt ConcurrentOptions) Step {
	return Step{Name: TestConcurrent, Run: func(ctx context.Context) (metrics.RunSummary, error) {
		return r.RunConcurrent(ctx, opt)
	}}
}

// ResponseStep wraps RunResponseTime as a suite step.
func (r *Runner) ResponseStep(opt ResponseOptions) Step {
	return Step{Name: TestResponse, Run: func(ctx context.Context) (metrics.RunSummary, error) {
		return r.RunResponseTime(ctx, opt)
	}}
}

// LongStep wraps RunLong as a suite step.
func (r *Runner) LongStep(opt LongOptions) Step {
	return Step{Name: TestLong, Run: func(ctx context.Context) (metrics.RunSummary, error) {
		return r.RunLong(ctx, opt)
	}}
}

// Outcome is the result of one suite step.
type Outcome struct {
	Name    string
	Summary metrics.RunSummary
	Err     error
}

// Suite runs steps one after another.
type Suite struct {
	Steps      []Step
	ResultsDir string
	Logger     *zap.Logger
	Now        func() time.Time
}

// SuiteResult is what a suite run produced.
type SuiteResult struct {
	Outcomes    []Outcome
	SummaryPath string
}

// Failed reports whether any step returned an error.
func (r SuiteResult) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return true
		}
	}
	return false
}

// Run executes every step, continuing past failed ones, and writes the suite
// summary under the results root. The returned error concerns the summary
// file only; step errors are carried in the outcomes.
func (s *Suite) Run(ctx context.Context) (SuiteResult, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}
	root := s.ResultsDir
	if root == "" {
		root = DefaultResultsDir
	}

	logger.Info("starting load tests", zap.Int("tests", len(s.Steps)))
	start := time.Now()
	var result SuiteResult
	summary := storage.SuiteSummary{Tests: make(map[string]storage.SuiteEntry)}

	for _, step := range s.Steps {
		if ctx.Err() != nil {
			logger.Warn("suite interrupted", zap.String("skipped", step.Name))
			break
		}
		logger.Info("running test", zap.String("test", step.Name))
		out := Outcome{Name: step.Name}
		out.Summary, out.Err = step.Run(ctx)
		result.Outcomes = append(result.Outcomes, out)
		summary.TestsRun = append(summary.TestsRun, step.Name)

		entry := storage.EntryFromSummary(out.Summary)
		if out.Err != nil {
			entry.Error = out.Err.Error()
			logger.Error("test failed", zap.String("test", step.Name), zap.Error(out.Err))
		} else {
			logger.Info("test finished", zap.String("test", step.Name))
		}
		summary.Tests[step.Name] = entry
	}

	summary.TotalDuration = math.Round(time.Since(start).Seconds()*100) / 100
	path, err := storage.WriteSuiteSummary(root, now(), summary)
	if err != nil {
		return result, err
	}
	result.SummaryPath = path
	logger.Info("all tests completed", zap.String("summary", path), zap.Float64("duration_s", summary.TotalDuration))
	return result, nil
}
