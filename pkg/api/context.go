package api

import (
	"context"
	"log/slog"
	"time"
)

// ActivityFunc is the implementation contract for a named activity: a
// discrete, possibly side-effecting external operation. Activities must be
// safe to invoke more than once per logical step (at-least-once semantics).
type ActivityFunc func(ctx context.Context, args []any) (any, error)

// WorkflowFunc is a workflow definition: a deterministic function executed
// (and re-executed on replay) by the host.
type WorkflowFunc func(ctx WorkflowContext, input any) (any, error)

// WorkflowContext is the host-supplied environment a workflow function
// runs in. All host interactions — activity invocation, suspension, clock
// reads, signal/query registration — go through it so that replay after a
// crash reproduces identical decisions.
//
// A WorkflowContext is owned by a single workflow goroutine and must not
// be shared across instances.
type WorkflowContext interface {
	// WorkflowID identifies the workflow instance.
	WorkflowID() string

	// RunID identifies the current run of the instance.
	RunID() string

	// Now returns the workflow-clock time. The value is recorded in the
	// instance history on first execution and replayed afterwards; never
	// read the wall clock directly from workflow code.
	Now() time.Time

	// NextExecutionID allocates a deterministic execution id for an
	// invocation of the named activity.
	NextExecutionID(activityName string) string

	// ExecuteActivity invokes the named activity with the given arguments,
	// per-call timeout, and retry policy. The terminal outcome (success or
	// exhausted-retry failure) is recorded in history and reused on
	// replay instead of re-invoking the activity.
	//
	// On exhausted retries the returned error is an *ActivityError.
	ExecuteActivity(name string, args []any, timeout time.Duration, policy RetryPolicy) (any, error)

	// Await suspends the workflow until cond() reports true. cond is
	// re-evaluated whenever a signal is delivered. It returns a non-nil
	// error if the host abandons the wait before the condition holds.
	Await(cond func() bool) error

	// AwaitWithTimeout is Await bounded by d. It returns (false, nil) if
	// the timeout elapses first.
	AwaitWithTimeout(d time.Duration, cond func() bool) (bool, error)

	// SetSignalHandler registers the handler invoked when a signal with
	// the given name is delivered to this instance. Handlers run while the
	// workflow is suspended or between its steps, never concurrently with
	// workflow code observing the same state.
	SetSignalHandler(name string, handler func(payload any))

	// SetQueryHandler registers a side-effect-free read over the
	// instance's current state. Queries are safe to call at any time,
	// including while the workflow is suspended.
	SetQueryHandler(name string, handler func() (any, error))

	// UpsertSearchAttributes mirrors state into externally indexed
	// attributes. Best-effort: failures are logged by the host and never
	// surface to workflow code.
	UpsertSearchAttributes(attrs map[string]any)

	// Logger returns a structured logger scoped to this instance.
	Logger() *slog.Logger
}
