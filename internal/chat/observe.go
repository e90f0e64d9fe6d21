package chat

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/dialogfire/internal/clientmetrics"
	"github.com/torosent/dialogfire/internal/tracing"
)

// WithRateLimit holds every call until limiter grants a token.
func WithRateLimit(limiter *rate.Limiter) Middleware {
	return func(next Handler) Handler {
		if limiter == nil {
			return next
		}
		return func(ctx context.Context, call Call) (string, error) {
			if err := limiter.Wait(ctx); err != nil {
				return "", err
			}
			return next(ctx, call)
		}
	}
}

// NewLimiter returns a limiter for rps calls per second, or nil when rps is
// not positive.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// WithTracing wraps every call in a client span.
func WithTracing(tracer trace.Tracer, model string) Middleware {
	return func(next Handler) Handler {
		if tracer == nil {
			return next
		}
		return func(ctx context.Context, call Call) (string, error) {
			ctx, span := tracing.StartChatSpan(ctx, tracer, string(call.Operation), model,
				tracing.AttrCategory.Int(int(call.Category)),
				tracing.AttrUserID.String(call.UserID),
				tracing.AttrMessages.Int(len(call.Messages)),
			)
			reply, err := next(ctx, call)
			if call.Operation == OpComplete {
				tracing.EndSpan(span, err, tracing.AttrReplyChars.Int(len(reply)))
			} else {
				tracing.EndSpan(span, err)
			}
			return reply, err
		}
	}
}

// WithMetrics records call counts, latency and payload sizes.
func WithMetrics(m *clientmetrics.ClientMetrics) Middleware {
	return func(next Handler) Handler {
		if m == nil {
			return next
		}
		return func(ctx context.Context, call Call) (string, error) {
			if call.Operation == OpComplete && len(call.Messages) > 0 {
				m.IncrementSent(int64(len(call.Messages[len(call.Messages)-1].Content)))
			}
			m.CallStarted()
			start := time.Now()
			reply, err := next(ctx, call)
			m.ObserveCall(string(call.Operation), int(call.Category), err, time.Since(start))
			if err == nil && call.Operation == OpComplete {
				m.IncrementReceived(int64(len(reply)))
			}
			return reply, err
		}
	}
}

// WithLogging logs every call at debug level and failures at warn level.
func WithLogging(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		if logger == nil {
			return next
		}
		return func(ctx context.Context, call Call) (string, error) {
			start := time.Now()
			reply, err := next(ctx, call)
			fields := []zap.Field{
				zap.String("operation", string(call.Operation)),
				zap.Int("category", int(call.Category)),
				zap.String("user_id", call.UserID),
				zap.Duration("elapsed", time.Since(start)),
			}
			if err != nil {
				logger.Warn("chat call failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("chat call", fields...)
			}
			return reply, err
		}
	}
}
