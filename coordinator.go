package intervene

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/casaops/intervene/pkg/api"
)

// Coordinator drives activity invocations through the intervention
// lifecycle: retry per policy, escalate exhausted failures to a human
// operator, suspend until the operator resolves, then retry exactly once
// more. One Coordinator belongs to one workflow run; create it at the top
// of the workflow function and route every activity call through Execute.
//
// The Coordinator registers the resolution signal handler and the
// observability query handlers on construction, so a workflow becomes
// signalable and queryable the moment it starts.
//
// Internal rule: c.mu is never held across a WorkflowContext call. The
// host delivers signals while holding its own instance lock and those
// handlers take c.mu, so holding c.mu while calling back into the host
// would invert the lock order.
type Coordinator struct {
	ctx api.WorkflowContext

	mu      sync.Mutex
	records *recordSet

	initialPolicy       api.RetryPolicy
	interventionTimeout time.Duration

	logger *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithInitialRetryPolicy overrides the retry policy used for the first
// invocation round of every activity.
func WithInitialRetryPolicy(p api.RetryPolicy) Option {
	return func(c *Coordinator) { c.initialPolicy = p }
}

// WithInterventionTimeout bounds how long a blocked activity waits for an
// operator. Zero (the default) waits indefinitely; the workflow stays
// suspended until the intervention is resolved or the host shuts down.
func WithInterventionTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.interventionTimeout = d }
}

// NewCoordinator creates a Coordinator for the given workflow run and
// wires up its signal and query surface.
func NewCoordinator(ctx api.WorkflowContext, opts ...Option) *Coordinator {
	c := &Coordinator{
		ctx:           ctx,
		records:       newRecordSet(),
		initialPolicy: api.InitialRetryPolicy(),
		logger:        ctx.Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registerSurface()
	return c
}

// Execute runs the named activity through the full lifecycle. On success
// it returns the activity result. When the initial retry round is
// exhausted it escalates to an intervention, projects the blocked state,
// and suspends the workflow until the intervention is resolved; the
// post-intervention retry then either returns the result or a terminal
// *api.InterventionFailedError.
//
// A *api.BlockedError return means the host abandoned the wait (shutdown)
// while the intervention was still pending; the workflow should surface
// it as a blocked result so the instance stays recoverable.
func (c *Coordinator) Execute(activity string, args []any, timeout time.Duration) (any, error) {
	execID := c.ctx.NextExecutionID(activity)
	started := c.ctx.Now()

	c.mu.Lock()
	err := c.records.start(execID, activity, started)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result, err := c.ctx.ExecuteActivity(activity, args, timeout, c.initialPolicy)
	if err == nil {
		ended := c.ctx.Now()
		c.mu.Lock()
		cerr := c.records.complete(execID, result, ended)
		c.mu.Unlock()
		if cerr != nil {
			return nil, cerr
		}
		return result, nil
	}

	var actErr *api.ActivityError
	if !errors.As(err, &actErr) {
		// Not an activity failure (host shutdown mid-invocation). The
		// invocation was never recorded, so a resumed run re-executes it.
		return nil, err
	}

	interventionID := fmt.Sprintf("%s:%s:%s", c.ctx.WorkflowID(), c.ctx.RunID(), execID)
	blockedAt := c.ctx.Now()

	c.mu.Lock()
	if ferr := c.records.fail(execID, actErr.Err.Error(), actErr.Attempts); ferr != nil {
		c.mu.Unlock()
		return nil, ferr
	}
	if eerr := c.records.escalate(execID, interventionID, blockedAt); eerr != nil {
		c.mu.Unlock()
		return nil, eerr
	}
	attrs := c.blockedAttrsLocked()
	c.mu.Unlock()

	c.ctx.UpsertSearchAttributes(attrs)
	c.logger.Warn("activity escalated to intervention",
		slog.String("activity", activity),
		slog.String("execution_id", execID),
		slog.String("intervention_id", interventionID),
		slog.Int("attempts", actErr.Attempts),
		slog.Any("error", actErr.Err),
	)

	if werr := c.awaitResolution(execID); werr != nil {
		return nil, werr
	}

	result, err = c.ctx.ExecuteActivity(activity, args, timeout, api.PostInterventionRetryPolicy())

	if err == nil {
		ended := c.ctx.Now()
		c.mu.Lock()
		cerr := c.records.complete(execID, result, ended)
		attrs := c.blockedAttrsLocked()
		c.mu.Unlock()
		if cerr != nil {
			return nil, cerr
		}
		c.ctx.UpsertSearchAttributes(attrs)
		c.logger.Info("activity recovered after intervention",
			slog.String("activity", activity),
			slog.String("execution_id", execID),
			slog.String("intervention_id", interventionID),
		)
		return result, nil
	}

	var retryErr *api.ActivityError
	if !errors.As(err, &retryErr) {
		// The post-intervention attempt was cut short by shutdown; leave
		// the record resolved so a resumed run retries it.
		return nil, err
	}
	cause := retryErr.Err

	ended := c.ctx.Now()
	c.mu.Lock()
	ferr := c.records.failFinal(execID, cause.Error(), ended)
	attrs = c.finalFailureAttrsLocked(execID)
	c.mu.Unlock()
	if ferr != nil {
		return nil, ferr
	}
	c.ctx.UpsertSearchAttributes(attrs)
	c.logger.Error("activity failed after intervention",
		slog.String("activity", activity),
		slog.String("execution_id", execID),
		slog.String("intervention_id", interventionID),
		slog.Any("error", cause),
	)
	return nil, &api.InterventionFailedError{
		Activity:       activity,
		InterventionID: interventionID,
		Err:            cause,
	}
}

// awaitResolution suspends the workflow until the record behind execID
// reaches INTERVENTION_RESOLVED, the intervention timeout elapses, or the
// host abandons the wait.
func (c *Coordinator) awaitResolution(execID string) error {
	resolved := func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.records.state(execID) == api.StateInterventionResolved
	}

	c.mu.Lock()
	rec, _ := c.records.get(execID)
	c.mu.Unlock()

	if c.interventionTimeout > 0 {
		ok, err := c.ctx.AwaitWithTimeout(c.interventionTimeout, resolved)
		if err != nil {
			return &api.BlockedError{Activity: rec.ActivityName, InterventionID: rec.InterventionID}
		}
		if !ok {
			return &api.InterventionTimeoutError{
				Activity:       rec.ActivityName,
				InterventionID: rec.InterventionID,
				Timeout:        c.interventionTimeout,
			}
		}
		return nil
	}

	if err := c.ctx.Await(resolved); err != nil {
		return &api.BlockedError{Activity: rec.ActivityName, InterventionID: rec.InterventionID}
	}
	return nil
}

// Blocked converts a *api.BlockedError returned by Execute into the
// result value a workflow should return so the instance is persisted as
// recoverable. ok is false for any other error.
func (c *Coordinator) Blocked(err error) (api.BlockedResult, bool) {
	berr, ok := api.IsBlockedError(err)
	if !ok {
		return api.BlockedResult{}, false
	}
	c.mu.Lock()
	pending := c.records.pendingInterventionIDs()
	c.mu.Unlock()
	return api.BlockedResult{
		Status:          api.BlockedStatus,
		BlockedActivity: berr.Activity,
		InterventionIDs: pending,
		Message:         berr.Error(),
	}, true
}
