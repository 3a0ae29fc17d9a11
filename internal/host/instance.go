package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/casaops/intervene/internal/persistence"
	"github.com/casaops/intervene/internal/projection"
	"github.com/casaops/intervene/pkg/api"
)

// instance is the runtime state of one workflow run. The workflow function
// executes on a dedicated goroutine; signals and queries are serialized
// against it through mu. mu is always acquired before any lock owned by
// workflow-author code (signal handlers and await conditions may take
// their own locks while mu is held, never the reverse).
type instance struct {
	host     *Host
	id       string
	runID    string
	workflow string
	input    any

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	cond   *sync.Cond
	status api.Status
	output any
	err    error

	signalHandlers map[string]func(payload any)
	queryHandlers  map[string]func() (any, error)

	attrs map[string]any

	// history is append-only. cursor < len(history) means the instance is
	// replaying recorded events; during live execution cursor always
	// equals len(history).
	history []persistence.HistoryEvent
	cursor  int

	// seq allocates deterministic per-activity execution ids.
	seq map[string]int

	done chan struct{}
}

func (inst *instance) infoLocked() *api.WorkflowInstance {
	return &api.WorkflowInstance{
		ID:     inst.id,
		RunID:  inst.runID,
		Name:   inst.workflow,
		Status: inst.status,
		Output: inst.output,
		Err:    inst.err,
		Input:  inst.input,
	}
}

func (inst *instance) info() *api.WorkflowInstance {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.infoLocked()
}

func (inst *instance) replayingLocked() bool {
	return inst.cursor < len(inst.history)
}

// applySignalsLocked re-applies recorded signal events at the cursor.
// During live execution there are none (record keeps cursor at the tail).
func (inst *instance) applySignalsLocked() {
	for inst.cursor < len(inst.history) && inst.history[inst.cursor].Kind == persistence.EventSignal {
		ev := inst.history[inst.cursor]
		inst.cursor++
		if handler, ok := inst.signalHandlers[ev.Signal]; ok {
			handler(ev.Payload)
		}
	}
}

// consumeLocked returns the next recorded event if it matches kind.
// A kind mismatch means the workflow code diverged from the recorded
// history; the remaining history is discarded and execution goes live.
func (inst *instance) consumeLocked(kind string) (persistence.HistoryEvent, bool) {
	inst.applySignalsLocked()
	if !inst.replayingLocked() {
		return persistence.HistoryEvent{}, false
	}
	ev := inst.history[inst.cursor]
	if ev.Kind != kind {
		inst.host.logger.Warn("history divergence, discarding remaining events",
			slog.String("instance_id", inst.id),
			slog.String("expected", kind),
			slog.String("recorded", ev.Kind),
		)
		inst.history = inst.history[:inst.cursor]
		return persistence.HistoryEvent{}, false
	}
	inst.cursor++
	return ev, true
}

// recordLocked appends an event and advances the cursor past it, then
// persists the instance best-effort.
func (inst *instance) recordLocked(ev persistence.HistoryEvent) {
	inst.history = append(inst.history, ev)
	inst.cursor = len(inst.history)
	inst.host.persistLocked(inst)
}

func (inst *instance) setStatusLocked(status api.Status) {
	inst.status = status
	inst.host.persistLocked(inst)
}

// wfContext implements api.WorkflowContext over an instance.
type wfContext struct {
	inst *instance
}

var _ api.WorkflowContext = (*wfContext)(nil)

func (c *wfContext) WorkflowID() string { return c.inst.id }
func (c *wfContext) RunID() string      { return c.inst.runID }

func (c *wfContext) Logger() *slog.Logger {
	return c.inst.host.logger.With(
		slog.String("workflow", c.inst.workflow),
		slog.String("instance_id", c.inst.id),
		slog.String("run_id", c.inst.runID),
	)
}

func (c *wfContext) Now() time.Time {
	inst := c.inst
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if ev, ok := inst.consumeLocked(persistence.EventTimestamp); ok {
		return ev.At
	}
	now := time.Now()
	inst.recordLocked(persistence.HistoryEvent{Kind: persistence.EventTimestamp, At: now})
	return now
}

func (c *wfContext) NextExecutionID(activityName string) string {
	inst := c.inst
	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.seq[activityName]++
	return fmt.Sprintf("%s-%d", activityName, inst.seq[activityName])
}

func (c *wfContext) ExecuteActivity(name string, args []any, timeout time.Duration, policy api.RetryPolicy) (any, error) {
	inst := c.inst

	inst.mu.Lock()
	if ev, ok := inst.consumeLocked(persistence.EventActivity); ok {
		inst.mu.Unlock()
		if ev.Error != "" {
			return nil, &api.ActivityError{Activity: ev.Activity, Attempts: ev.Attempts, Err: errors.New(ev.Error)}
		}
		return ev.Result, nil
	}
	executionID := fmt.Sprintf("%s-%d", name, inst.seq[name])
	info := inst.infoLocked()
	inst.mu.Unlock()

	start := time.Now()
	inst.host.observer.OnActivityStart(inst.ctx, info, name, executionID)
	out, attempts, err := inst.host.invoker.Invoke(inst.ctx, name, args, timeout, policy)
	inst.host.observer.OnActivityCompleted(inst.ctx, info, name, executionID, err, time.Since(start))

	var actErr *api.ActivityError
	if err != nil && !errors.As(err, &actErr) {
		// Host shutdown mid-invocation: nothing is recorded, so a resumed
		// run re-invokes the activity (at-least-once semantics).
		return nil, err
	}

	ev := persistence.HistoryEvent{
		Kind:        persistence.EventActivity,
		ExecutionID: executionID,
		Activity:    name,
		Attempts:    attempts,
	}
	if actErr != nil {
		ev.Error = actErr.Err.Error()
	} else {
		ev.Result = out
	}

	inst.mu.Lock()
	inst.recordLocked(ev)
	inst.mu.Unlock()

	return out, err
}

func (c *wfContext) Await(cond func() bool) error {
	inst := c.inst
	inst.mu.Lock()
	defer inst.mu.Unlock()

	// Replay: recorded signals may satisfy the condition without waiting.
	inst.applySignalsLocked()
	if cond() {
		return nil
	}

	inst.setStatusLocked(api.StatusWaiting)
	for !cond() {
		if inst.ctx.Err() != nil {
			inst.status = api.StatusRunning
			return inst.ctx.Err()
		}
		inst.cond.Wait()
		inst.applySignalsLocked()
	}
	inst.setStatusLocked(api.StatusRunning)
	return nil
}

func (c *wfContext) AwaitWithTimeout(d time.Duration, cond func() bool) (bool, error) {
	inst := c.inst
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if ev, ok := inst.consumeLocked(persistence.EventAwait); ok {
		return ev.Resolved, nil
	}

	expired := false
	timer := time.AfterFunc(d, func() {
		inst.mu.Lock()
		expired = true
		inst.cond.Broadcast()
		inst.mu.Unlock()
	})
	defer timer.Stop()

	inst.setStatusLocked(api.StatusWaiting)
	for !cond() && !expired {
		if inst.ctx.Err() != nil {
			inst.status = api.StatusRunning
			return false, inst.ctx.Err()
		}
		inst.cond.Wait()
		inst.applySignalsLocked()
	}
	inst.setStatusLocked(api.StatusRunning)

	resolved := cond()
	inst.recordLocked(persistence.HistoryEvent{Kind: persistence.EventAwait, Resolved: resolved})
	return resolved, nil
}

func (c *wfContext) SetSignalHandler(name string, handler func(payload any)) {
	inst := c.inst
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.signalHandlers[name] = handler
}

func (c *wfContext) SetQueryHandler(name string, handler func() (any, error)) {
	inst := c.inst
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.queryHandlers[name] = handler
}

func (c *wfContext) UpsertSearchAttributes(attrs map[string]any) {
	inst := c.inst

	inst.mu.Lock()
	for k, v := range attrs {
		inst.attrs[k] = v
	}
	projected := projection.Attributes{InstanceID: inst.id}
	if v, ok := inst.attrs[api.AttrIsBlocked].(bool); ok {
		projected.IsBlocked = v
	}
	if v, ok := inst.attrs[api.AttrBlockedActivity].(string); ok {
		projected.BlockedActivity = v
	}
	if v, ok := inst.attrs[api.AttrBlockedError].(string); ok {
		projected.BlockedError = v
	}
	if v, ok := inst.attrs[api.AttrBlockedAt].(time.Time); ok {
		projected.BlockedAt = v
	}
	if v, ok := inst.attrs[api.AttrInterventionID].(string); ok {
		projected.InterventionID = v
	}
	inst.mu.Unlock()

	// Projection writes are fire-and-forget: losing them must never
	// affect the state machine, only operator visibility.
	if err := inst.host.projection.Upsert(inst.ctx, projected); err != nil {
		inst.host.logger.Warn("search attribute upsert failed",
			slog.String("instance_id", inst.id),
			slog.Any("error", err),
		)
	}
}
