package chat

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

const (
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 10 * time.Second
)

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, all errors retried
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

// WithRetry retries failed calls according to policy.
func WithRetry(policy RetryPolicy) Middleware {
	return func(next Handler) Handler {
		if policy.MaxAttempts <= 1 {
			return next
		}
		return func(ctx context.Context, call Call) (string, error) {
			var lastErr error
			for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}

				reply, err := next(ctx, call)
				if err == nil {
					return reply, nil
				}
				lastErr = err

				// Don't delay after the last attempt.
				if attempt < policy.MaxAttempts {
					if policy.ShouldRetry != nil && !policy.ShouldRetry(lastErr) {
						return "", lastErr
					}
					delay := policy.Delay
					if policy.DelayFunc != nil {
						delay = policy.DelayFunc(attempt, lastErr)
					}
					if delay > 0 {
						t := time.NewTimer(delay)
						select {
						case <-t.C:
						case <-ctx.Done():
							t.Stop()
							return "", ctx.Err()
						}
					}
				}
			}
			return "", lastErr
		}
	}
}

// Retryable reports whether err is worth another attempt: rate limiting,
// server errors and transport faults are, while cancellation, per-call
// timeouts, empty replies and client errors are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrEmptyReply) {
		return false
	}
	if code := StatusCode(err); code != 0 {
		return code == http.StatusTooManyRequests || code >= 500
	}
	return true
}

// DefaultRetryPolicy retries up to retries times with exponential backoff and
// jitter.
func DefaultRetryPolicy(retries int, seed int64) RetryPolicy {
	source := &jitterSource{rnd: rand.New(rand.NewSource(seed))}
	return RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: Retryable,
		DelayFunc: func(attempt int, err error) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
			if backoff > maxRetryDelay {
				backoff = maxRetryDelay
			}
			return backoff + source.jitter(backoff/2)
		},
	}
}

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}
