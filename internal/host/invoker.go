package host

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/casaops/intervene/pkg/api"
)

// Invoker calls registered activities under a retry policy. It is
// side-effect-free beyond scheduling: all effects belong to the activity.
type Invoker struct {
	registry *Registry
	logger   *slog.Logger
}

// NewInvoker creates an Invoker over the given registry.
func NewInvoker(registry *Registry, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{registry: registry, logger: logger}
}

// Invoke runs the named activity with args and a per-attempt timeout,
// retrying per policy. It returns the result, the number of attempts
// actually made, and an error.
//
// When every attempt fails, the error is an *api.ActivityError wrapping
// the last attempt's error. A context cancellation is returned as-is so
// callers can distinguish host shutdown from activity failure.
func (iv *Invoker) Invoke(ctx context.Context, name string, args []any, timeout time.Duration, policy api.RetryPolicy) (any, int, error) {
	fn, err := iv.registry.Lookup(name)
	if err != nil {
		return nil, 0, &api.ActivityError{Activity: name, Attempts: 0, Err: err}
	}

	call := func(ctx context.Context) (any, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return fn(ctx, args)
	}

	attempts := 0

	if policy.MaxAttempts <= 1 {
		attempts = 1
		out, err := call(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, attempts, ctx.Err()
			}
			return nil, attempts, &api.ActivityError{Activity: name, Attempts: attempts, Err: err}
		}
		return out, attempts, nil
	}

	backoff := policy.InitialBackoff
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	b := retry.NewExponential(backoff)
	if policy.MaxBackoff > 0 {
		b = retry.WithCappedDuration(policy.MaxBackoff, b)
	}
	b = retry.WithMaxRetries(uint64(policy.MaxAttempts-1), b)

	var out any
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		v, err := call(ctx)
		if err != nil {
			iv.logger.Debug("activity attempt failed",
				slog.String("activity", name),
				slog.Int("attempt", attempts),
				slog.Any("error", err),
			)
			return retry.RetryableError(err)
		}
		out = v
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, attempts, ctx.Err()
		}
		return nil, attempts, &api.ActivityError{Activity: name, Attempts: attempts, Err: err}
	}
	return out, attempts, nil
}
