package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Operation names a Client method.
type Operation string

const (
	OpStartDialogue Operation = "start_dialogue"
	OpComplete      Operation = "complete"
)

// Call describes one collaborator call travelling through the middleware chain.
type Call struct {
	Operation Operation
	Category  Category
	UserID    string
	Messages  []Message
}

// Handler executes a call and returns the reply, or the dialogue id for
// OpStartDialogue.
type Handler func(ctx context.Context, call Call) (string, error)

// Middleware decorates a Handler.
type Middleware func(next Handler) Handler

// Wrap applies middleware to c. The first middleware is the outermost.
func Wrap(c Client, mws ...Middleware) Client {
	if len(mws) == 0 {
		return c
	}
	h := func(ctx context.Context, call Call) (string, error) {
		switch call.Operation {
		case OpStartDialogue:
			return c.StartDialogue(ctx, call.Category, call.UserID)
		case OpComplete:
			return c.Complete(ctx, call.Messages, call.UserID, call.Category)
		default:
			return "", fmt.Errorf("unknown chat operation %q", call.Operation)
		}
	}
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return &wrappedClient{handle: h}
}

type wrappedClient struct {
	handle Handler
}

func (w *wrappedClient) StartDialogue(ctx context.Context, category Category, userID string) (string, error) {
	return w.handle(ctx, Call{Operation: OpStartDialogue, Category: category, UserID: userID})
}

func (w *wrappedClient) Complete(ctx context.Context, messages []Message, userID string, category Category) (string, error) {
	return w.handle(ctx, Call{Operation: OpComplete, Category: category, UserID: userID, Messages: messages})
}

// WithTimeout bounds every call with its own deadline. A call that hits the
// deadline fails with ErrTimeout; cancellation of the parent is passed through.
func WithTimeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, call Call) (string, error) {
			callCtx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			reply, err := next(callCtx, call)
			if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("%w after %s", ErrTimeout, d)
			}
			return reply, err
		}
	}
}
