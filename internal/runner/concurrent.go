package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/dialogfire/internal/chat"
	"github.com/torosent/dialogfire/internal/dialogue"
	"github.com/torosent/dialogfire/internal/metrics"
)

// RunConcurrent launches opt.Users sessions at once and waits for all of
// them. Categories cycle 1, 2, 3 across sessions.
func (r *Runner) RunConcurrent(ctx context.Context, opt ConcurrentOptions) (metrics.RunSummary, error) {
	opt.normalize()
	rn, err := r.begin(TestConcurrent)
	if err != nil {
		return metrics.RunSummary{}, err
	}
	rn.logger.Info("starting concurrent dialogues test",
		zap.Int("users", opt.Users),
		zap.Int("messages_per_dialog", opt.Messages),
		zap.Int("max_in_flight", opt.MaxInFlight),
	)

	if opt.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opt.Duration)
		defer cancel()
	}

	sim := r.simulator(rn)
	sim.Delay = opt.Delay

	specs := make([]dialogue.SessionSpec, opt.Users)
	for i := range specs {
		specs[i] = r.sessionSpec(i+1, chat.CategoryFor(i), opt.Messages)
	}
	stats := make([]dialogue.SessionStats, opt.Users)

	start := time.Now()
	recovered := fanOut(ctx, opt.Users, opt.MaxInFlight, func(ctx context.Context, i int) {
		stats[i] = sim.Run(ctx, specs[i])
	})
	elapsed := time.Since(start)

	dialogs := make([]dialogue.SessionStats, 0, opt.Users)
	for i, rec := range recovered {
		if rec != nil {
			rn.recordPanic("dialog", i+1, rec)
			continue
		}
		dialogs = append(dialogs, stats[i])
	}
	if opt.Duration > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		rn.collector.RecordError(fmt.Sprintf("test exceeded max duration of %s", opt.Duration))
	}

	rn.collector.SetDetails(TestConcurrent, ConcurrentData{
		NumUsers:           opt.Users,
		MessagesPerDialog:  opt.Messages,
		ConcurrentRequests: opt.ConcurrentRequests,
		MessageDelay:       opt.Delay.Seconds(),
		MaxTestDuration:    opt.Duration.Seconds(),
		UserDialogs:        dialogs,
		ActualTestDuration: elapsed.Seconds(),
	})
	rn.logger.Info("dialogues finished", zap.Int("completed", len(dialogs)), zap.Duration("elapsed", elapsed))
	return rn.finish()
}
