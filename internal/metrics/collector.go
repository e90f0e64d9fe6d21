package metrics

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"
)

// ErrFinalized is returned when Finalize is called more than once.
var ErrFinalized = errors.New("metrics: collector already finalized")

// distributionBins is the number of bars in the latency distribution.
const distributionBins = 20

// Sink persists a finalized run.
type Sink interface {
	Save(summary RunSummary, series []SeriesPoint) error
}

// Locator is implemented by sinks that persist into a directory.
type Locator interface {
	Path() string
}

// Option customizes a Collector.
type Option func(*Collector)

// WithSink sets the persistence sink used by Finalize.
func WithSink(sink Sink) Option {
	return func(c *Collector) { c.sink = sink }
}

// WithLogger sets the logger used for recorded errors.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// Collector owns the mutable state of one test run. It is safe for concurrent
// use; every append happens under the mutex.
type Collector struct {
	mu        sync.Mutex
	name      string
	start     time.Time
	samples   []float64
	errors    []string
	extra     map[string]any
	mode      string
	details   any
	hist      *hdrhistogram.Histogram
	last      float64
	finalized bool

	sink   Sink
	logger *zap.Logger
	now    func() time.Time
}

// NewCollector creates a collector for the named test and stamps its start time.
func NewCollector(name string, opts ...Option) *Collector {
	c := &Collector{
		name:   name,
		extra:  make(map[string]any),
		logger: zap.NewNop(),
		now:    time.Now,
		// Track latencies from 1µs up to 10 minutes with 3 significant figures.
		hist: hdrhistogram.New(1, 600_000_000, 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.start = c.now()
	return c
}

// Name returns the test name.
func (c *Collector) Name() string { return c.name }

// StartedAt returns the time the collector was created.
func (c *Collector) StartedAt() time.Time { return c.start }

// RecordLatency appends a latency sample in milliseconds. Values are not
// validated; zero and negative samples are kept as-is.
func (c *Collector) RecordLatency(ms float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = append(c.samples, ms)
	c.last = ms

	us := int64(ms * 1000)
	if us < c.hist.LowestTrackableValue() {
		us = c.hist.LowestTrackableValue()
	}
	if us > c.hist.HighestTrackableValue() {
		us = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(us)
}

// RecordError appends an error description.
func (c *Collector) RecordError(message string) {
	c.mu.Lock()
	c.errors = append(c.errors, message)
	c.mu.Unlock()

	c.logger.Error("test error", zap.String("test", c.name), zap.String("error", message))
}

// SetData sets a free-form entry of the run data. Last write wins.
func (c *Collector) SetData(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extra[key] = value
}

// SetDetails attaches the typed payload of the given mode.
func (c *Collector) SetDetails(mode string, details any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.details = details
}

// Samples returns a copy of the recorded samples in insertion order.
func (c *Collector) Samples() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.samples...)
}

// Errors returns a copy of the recorded errors.
func (c *Collector) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.errors...)
}

// Finalize stamps the end time, computes the summary, hands it to the sink and
// returns it. The collector must not be reused afterwards.
func (c *Collector) Finalize() (RunSummary, error) {
	c.mu.Lock()
	if c.finalized {
		c.mu.Unlock()
		return RunSummary{}, ErrFinalized
	}
	c.finalized = true

	end := c.now()
	total := len(c.samples)
	extra := make(map[string]any, len(c.extra))
	for k, v := range c.extra {
		extra[k] = v
	}
	if len(extra) == 0 {
		extra = nil
	}

	summary := RunSummary{
		TestName:           c.name,
		Timestamp:          c.start.Format(TimestampLayout),
		StartedAt:          c.start,
		DurationSeconds:    round2(end.Sub(c.start).Seconds()),
		TotalRequests:      total,
		SuccessfulRequests: total - len(c.errors),
		FailedRequests:     len(c.errors),
		ResponseTimes:      ComputeTable(c.samples).Rounded(),
		Distribution:       c.distributionLocked(),
		Errors:             append([]string{}, c.errors...),
		TestData: TestData{
			Mode:    c.mode,
			Details: c.details,
			Extra:   extra,
		},
	}
	series := Series(c.samples)
	c.mu.Unlock()

	if c.sink == nil {
		return summary, nil
	}
	if loc, ok := c.sink.(Locator); ok {
		summary.ResultDir = loc.Path()
	}
	if err := c.sink.Save(summary, series); err != nil {
		summary.ResultDir = ""
		return summary, fmt.Errorf("save %s results: %w", c.name, err)
	}
	return summary, nil
}

// distributionLocked folds the histogram into equal-width bars between the
// smallest and largest recorded value. Caller must hold c.mu.
func (c *Collector) distributionLocked() []Bucket {
	if c.hist.TotalCount() == 0 {
		return nil
	}
	minUs := float64(c.hist.Min())
	maxUs := float64(c.hist.Max())
	width := (maxUs - minUs) / distributionBins
	if width <= 0 {
		return []Bucket{{
			FromMs: round2(minUs / 1000),
			ToMs:   round2(maxUs / 1000),
			Count:  c.hist.TotalCount(),
		}}
	}

	buckets := make([]Bucket, distributionBins)
	for i := range buckets {
		from := minUs + width*float64(i)
		buckets[i] = Bucket{
			FromMs: round2(from / 1000),
			ToMs:   round2((from + width) / 1000),
		}
	}
	for _, bar := range c.hist.Distribution() {
		if bar.Count == 0 {
			continue
		}
		idx := int(math.Floor((float64(bar.From) - minUs) / width))
		if idx < 0 {
			idx = 0
		}
		if idx >= distributionBins {
			idx = distributionBins - 1
		}
		buckets[idx].Count += bar.Count
	}
	return buckets
}
