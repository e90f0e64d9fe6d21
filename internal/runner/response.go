package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/dialogfire/internal/chat"
	"github.com/torosent/dialogfire/internal/metrics"
)

type pendingRequest struct {
	id       int
	userID   string
	category chat.Category
	messages []chat.Message
}

// RunResponseTime sends opt.Total single-turn requests in batches of
// opt.BatchSize, pausing BatchDelay between batches so the load ramps up over
// opt.RampUp.
func (r *Runner) RunResponseTime(ctx context.Context, opt ResponseOptions) (metrics.RunSummary, error) {
	opt.normalize()
	rn, err := r.begin(TestResponse)
	if err != nil {
		return metrics.RunSummary{}, err
	}
	batches, delay := opt.Batches(), opt.BatchDelay()
	rn.logger.Info("starting response time test",
		zap.Int("requests", opt.Total),
		zap.Int("batch_size", opt.BatchSize),
		zap.Int("batches", batches),
		zap.Duration("batch_delay", delay),
	)

	var completed, failed atomic.Int64
	progressEvery := max(1, opt.Total/10)
	results := make([]RequestStats, 0, opt.Total)

	start := time.Now()
	for b := 0; b < batches; b++ {
		if ctx.Err() != nil {
			break
		}
		lo := b * opt.BatchSize
		hi := min(lo+opt.BatchSize, opt.Total)

		pending := make([]pendingRequest, hi-lo)
		for j := range pending {
			spec := r.sessionSpec(lo+j+1, r.randomCategory(), 1)
			turn := r.opt.Bank.Generate(spec.Category, 1, spec.Rand)[0]
			pending[j] = pendingRequest{
				id:       spec.ID,
				userID:   spec.UserID,
				category: spec.Category,
				messages: append(r.opt.Prompts.Opening(spec.Category), chat.Message{Role: chat.RoleUser, Content: turn}),
			}
		}

		batch := make([]RequestStats, len(pending))
		recovered := fanOut(ctx, len(pending), 0, func(ctx context.Context, j int) {
			batch[j] = r.sendRequest(ctx, rn, pending[j], opt.Timeout)
			n := completed.Add(1)
			if batch[j].Status != StatusSuccess {
				failed.Add(1)
			}
			if pending[j].id%progressEvery == 0 || pending[j].id == opt.Total {
				rn.logger.Info("progress",
					zap.Int64("completed", n),
					zap.Int("total", opt.Total),
					zap.Int64("failed", failed.Load()))
			}
		})
		for j, rec := range recovered {
			if rec != nil {
				rn.recordPanic("request", pending[j].id, rec)
				failed.Add(1)
				continue
			}
			results = append(results, batch[j])
		}

		if hi < opt.Total && !sleep(ctx, delay) {
			break
		}
	}
	elapsed := time.Since(start)

	secs := math.Max(0.001, elapsed.Seconds())
	rps := math.Round(float64(opt.Total)/secs*100) / 100
	rn.collector.SetDetails(TestResponse, ResponseData{
		TotalRequests:      opt.Total,
		BatchSize:          opt.BatchSize,
		RampUpSeconds:      opt.RampUp.Seconds(),
		RequestTimeout:     opt.Timeout.Seconds(),
		RequestStats:       results,
		ActualTestDuration: elapsed.Seconds(),
		RequestsPerSecond:  rps,
	})
	rn.logger.Info("requests finished",
		zap.Int64("completed", completed.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Float64("rps", rps))
	return rn.finish()
}

// sendRequest performs one request. Answered requests, empty ones included,
// contribute a latency sample; timeouts and errors only an error record.
func (r *Runner) sendRequest(ctx context.Context, rn *run, req pendingRequest, timeout time.Duration) RequestStats {
	stats := RequestStats{
		RequestID: req.id,
		UserID:    req.userID,
		Category:  req.category,
		StartTime: r.opt.Now(),
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	began := time.Now()
	_, err := r.opt.Client.Complete(ctx, req.messages, req.userID, req.category)
	elapsed := millis(time.Since(began))
	stats.EndTime = r.opt.Now()

	switch {
	case err == nil:
		stats.ResponseTimeMs = &elapsed
		stats.Status = StatusSuccess
		rn.collector.RecordLatency(elapsed)
	case errors.Is(err, chat.ErrEmptyReply):
		stats.ResponseTimeMs = &elapsed
		stats.Status = StatusFailed
		stats.Error = "Empty response"
		rn.collector.RecordLatency(elapsed)
		rn.collector.RecordError(fmt.Sprintf("Empty response for request %d", req.id))
	case errors.Is(err, chat.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		stats.Status = StatusTimeout
		stats.Error = "Request timed out"
		rn.collector.RecordError(fmt.Sprintf("Timeout for request %d", req.id))
	default:
		stats.Status = StatusError
		stats.Error = err.Error()
		rn.collector.RecordError(fmt.Sprintf("Error in request %d: %v", req.id, err))
	}
	return stats
}
