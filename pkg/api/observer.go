package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the host for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be
// done asynchronously so as not to delay workflow execution.
type Observer interface {
	// OnWorkflowStart is called once when a workflow instance is first
	// started, before any activity is invoked.
	OnWorkflowStart(ctx context.Context, inst *WorkflowInstance)

	// OnWorkflowCompleted is called when an instance reaches StatusCompleted.
	OnWorkflowCompleted(ctx context.Context, inst *WorkflowInstance)

	// OnWorkflowBlocked is called when an instance ends while one or more
	// interventions are still pending (StatusWaiting).
	OnWorkflowBlocked(ctx context.Context, inst *WorkflowInstance)

	// OnWorkflowFailed is called when an instance transitions to StatusFailed.
	OnWorkflowFailed(ctx context.Context, inst *WorkflowInstance, err error)

	// OnActivityStart is called before an activity invocation (all attempts
	// of one policy count as one invocation).
	OnActivityStart(ctx context.Context, inst *WorkflowInstance, activity, executionID string)

	// OnActivityCompleted is called after an activity invocation returns,
	// for both successes and exhausted-retry failures (err != nil).
	OnActivityCompleted(ctx context.Context, inst *WorkflowInstance, activity, executionID string, err error, duration time.Duration)

	// OnSignal is called when a signal is delivered to an instance.
	OnSignal(ctx context.Context, inst *WorkflowInstance, signal string)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnWorkflowStart(ctx context.Context, inst *WorkflowInstance)             {}
func (NoopObserver) OnWorkflowCompleted(ctx context.Context, inst *WorkflowInstance)         {}
func (NoopObserver) OnWorkflowBlocked(ctx context.Context, inst *WorkflowInstance)           {}
func (NoopObserver) OnWorkflowFailed(ctx context.Context, inst *WorkflowInstance, err error) {}
func (NoopObserver) OnActivityStart(ctx context.Context, inst *WorkflowInstance, activity, executionID string) {
}
func (NoopObserver) OnActivityCompleted(ctx context.Context, inst *WorkflowInstance, activity, executionID string, err error, d time.Duration) {
}
func (NoopObserver) OnSignal(ctx context.Context, inst *WorkflowInstance, signal string) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnWorkflowStart(ctx context.Context, inst *WorkflowInstance) {
	for _, o := range c.observers {
		o.OnWorkflowStart(ctx, inst)
	}
}

func (c *CompositeObserver) OnWorkflowCompleted(ctx context.Context, inst *WorkflowInstance) {
	for _, o := range c.observers {
		o.OnWorkflowCompleted(ctx, inst)
	}
}

func (c *CompositeObserver) OnWorkflowBlocked(ctx context.Context, inst *WorkflowInstance) {
	for _, o := range c.observers {
		o.OnWorkflowBlocked(ctx, inst)
	}
}

func (c *CompositeObserver) OnWorkflowFailed(ctx context.Context, inst *WorkflowInstance, err error) {
	for _, o := range c.observers {
		o.OnWorkflowFailed(ctx, inst, err)
	}
}

func (c *CompositeObserver) OnActivityStart(ctx context.Context, inst *WorkflowInstance, activity, executionID string) {
	for _, o := range c.observers {
		o.OnActivityStart(ctx, inst, activity, executionID)
	}
}

func (c *CompositeObserver) OnActivityCompleted(ctx context.Context, inst *WorkflowInstance, activity, executionID string, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnActivityCompleted(ctx, inst, activity, executionID, err, d)
	}
}

func (c *CompositeObserver) OnSignal(ctx context.Context, inst *WorkflowInstance, signal string) {
	for _, o := range c.observers {
		o.OnSignal(ctx, inst, signal)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs workflow / activity
// lifecycle events using the provided slog.Logger. If logger is nil,
// slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnWorkflowStart(ctx context.Context, inst *WorkflowInstance) {
	o.Logger.InfoContext(ctx, "workflow_start",
		slog.String("workflow", inst.Name),
		slog.String("instance_id", inst.ID),
		slog.String("run_id", inst.RunID),
	)
}

func (o *LoggingObserver) OnWorkflowCompleted(ctx context.Context, inst *WorkflowInstance) {
	o.Logger.InfoContext(ctx, "workflow_completed",
		slog.String("workflow", inst.Name),
		slog.String("instance_id", inst.ID),
	)
}

func (o *LoggingObserver) OnWorkflowBlocked(ctx context.Context, inst *WorkflowInstance) {
	o.Logger.WarnContext(ctx, "workflow_blocked",
		slog.String("workflow", inst.Name),
		slog.String("instance_id", inst.ID),
	)
}

func (o *LoggingObserver) OnWorkflowFailed(ctx context.Context, inst *WorkflowInstance, err error) {
	o.Logger.ErrorContext(ctx, "workflow_failed",
		slog.String("workflow", inst.Name),
		slog.String("instance_id", inst.ID),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnActivityStart(ctx context.Context, inst *WorkflowInstance, activity, executionID string) {
	o.Logger.DebugContext(ctx, "activity_start",
		slog.String("workflow", inst.Name),
		slog.String("instance_id", inst.ID),
		slog.String("activity", activity),
		slog.String("execution_id", executionID),
	)
}

func (o *LoggingObserver) OnActivityCompleted(ctx context.Context, inst *WorkflowInstance, activity, executionID string, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "activity_completed",
		slog.String("workflow", inst.Name),
		slog.String("instance_id", inst.ID),
		slog.String("activity", activity),
		slog.String("execution_id", executionID),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnSignal(ctx context.Context, inst *WorkflowInstance, signal string) {
	o.Logger.InfoContext(ctx, "signal_received",
		slog.String("workflow", inst.Name),
		slog.String("instance_id", inst.ID),
		slog.String("signal", signal),
	)
}

// BasicMetrics collects simple counters and aggregate activity durations.
// It implements Observer and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	workflowsStarted   atomic.Int64
	workflowsCompleted atomic.Int64
	workflowsBlocked   atomic.Int64
	workflowsFailed    atomic.Int64
	activitiesRun      atomic.Int64
	resolutionSignals  atomic.Int64
	totalActivityTime  atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	WorkflowsStarted   int64
	WorkflowsCompleted int64
	WorkflowsBlocked   int64
	WorkflowsFailed    int64

	ActivitiesRun       int64
	ResolutionSignals   int64
	AvgActivityDuration time.Duration
}

func (m *BasicMetrics) OnWorkflowStart(ctx context.Context, inst *WorkflowInstance) {
	m.workflowsStarted.Add(1)
}

func (m *BasicMetrics) OnWorkflowCompleted(ctx context.Context, inst *WorkflowInstance) {
	m.workflowsCompleted.Add(1)
}

func (m *BasicMetrics) OnWorkflowBlocked(ctx context.Context, inst *WorkflowInstance) {
	m.workflowsBlocked.Add(1)
}

func (m *BasicMetrics) OnWorkflowFailed(ctx context.Context, inst *WorkflowInstance, err error) {
	m.workflowsFailed.Add(1)
}

func (m *BasicMetrics) OnActivityCompleted(ctx context.Context, inst *WorkflowInstance, activity, executionID string, err error, d time.Duration) {
	// Only successful invocations count toward the average duration.
	if err == nil {
		m.activitiesRun.Add(1)
		m.totalActivityTime.Add(d.Nanoseconds())
	}
}

func (m *BasicMetrics) OnSignal(ctx context.Context, inst *WorkflowInstance, signal string) {
	if signal == SignalResolveIntervention {
		m.resolutionSignals.Add(1)
	}
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	activities := m.activitiesRun.Load()
	totalNs := m.totalActivityTime.Load()

	var avg time.Duration
	if activities > 0 {
		avg = time.Duration(totalNs / activities)
	}

	return BasicMetricsSnapshot{
		WorkflowsStarted:    m.workflowsStarted.Load(),
		WorkflowsCompleted:  m.workflowsCompleted.Load(),
		WorkflowsBlocked:    m.workflowsBlocked.Load(),
		WorkflowsFailed:     m.workflowsFailed.Load(),
		ActivitiesRun:       activities,
		ResolutionSignals:   m.resolutionSignals.Load(),
		AvgActivityDuration: avg,
	}
}
