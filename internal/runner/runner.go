package runner

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/dialogfire/internal/chat"
	"github.com/torosent/dialogfire/internal/dialogue"
	"github.com/torosent/dialogfire/internal/metrics"
	"github.com/torosent/dialogfire/internal/storage"
)

// Runner executes the test modes against a chat collaborator. Each Run*
// call owns a fresh collector and run directory.
type Runner struct {
	opt Options

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, rnd: rand.New(rand.NewSource(opt.Seed))}
}

// run is the state shared by the units of one test run.
type run struct {
	name      string
	dir       *storage.RunDir
	collector *metrics.Collector
	logger    *zap.Logger
	stop      func()
}

func (r *Runner) begin(name string) (*run, error) {
	dir, err := storage.NewRunDir(r.opt.ResultsDir, name, r.opt.Now())
	if err != nil {
		return nil, fmt.Errorf("create %s run directory: %w", name, err)
	}
	logger := r.opt.Logger.Named(name)
	c := metrics.NewCollector(name,
		metrics.WithSink(dir),
		metrics.WithLogger(logger),
		metrics.WithClock(r.opt.Now),
	)
	stop := func() {}
	if r.opt.Watch != nil {
		if s := r.opt.Watch(name, c); s != nil {
			stop = s
		}
	}
	return &run{name: name, dir: dir, collector: c, logger: logger, stop: stop}, nil
}

// finish stops watchers, then finalizes and persists the run.
func (rn *run) finish() (metrics.RunSummary, error) {
	rn.stop()
	summary, err := rn.collector.Finalize()
	if err != nil {
		return summary, err
	}
	rn.logger.Info("test completed",
		zap.String("dir", rn.dir.Path()),
		zap.Int("total", summary.TotalRequests),
		zap.Int("failed", summary.FailedRequests),
		zap.Float64("duration_s", summary.DurationSeconds),
	)
	return summary, nil
}

// recordPanic turns a recovered unit panic into a single error record.
func (rn *run) recordPanic(unit string, id int, rec *panics.Recovered) {
	rn.logger.Error("unit panicked",
		zap.String("unit", unit),
		zap.Int("id", id),
		zap.Any("value", rec.Value),
		zap.ByteString("stack", rec.Stack),
	)
	rn.collector.RecordError(fmt.Sprintf("exception in %s %d: %v", unit, id, rec.Value))
}

// fanOut runs unit for every index in [0, n) and waits for all of them.
// limit caps the units in flight (0 means no cap). A panicking unit is
// recovered and reported at its index; siblings are never canceled.
func fanOut(ctx context.Context, n, limit int, unit func(ctx context.Context, i int)) []*panics.Recovered {
	recovered := make([]*panics.Recovered, n)
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			var pc panics.Catcher
			pc.Try(func() { unit(ctx, i) })
			recovered[i] = pc.Recovered()
			return nil
		})
	}
	_ = g.Wait()
	return recovered
}

func (r *Runner) simulator(rn *run) *dialogue.Simulator {
	return &dialogue.Simulator{
		Client:   r.opt.Client,
		Recorder: rn.collector,
		Prompts:  r.opt.Prompts,
		Bank:     r.opt.Bank,
		Logger:   rn.logger,
		Now:      r.opt.Now,
	}
}

// sessionSpec draws the user id and phrase seed of a session. It must be
// called from the orchestrating goroutine.
func (r *Runner) sessionSpec(id int, category chat.Category, messages int) dialogue.SessionSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return dialogue.SessionSpec{
		ID:       id,
		UserID:   dialogue.GenerateUserID(r.opt.Now(), r.rnd),
		Category: category,
		Messages: messages,
		Rand:     rand.New(rand.NewSource(r.rnd.Int63())),
	}
}

func (r *Runner) randomCategory() chat.Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	return chat.Categories[r.rnd.Intn(len(chat.Categories))]
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
