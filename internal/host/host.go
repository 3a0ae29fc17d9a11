// Package host is an in-process durable-execution substrate: it schedules
// workflow functions, records their history, delivers signals, answers
// queries, and replays recorded history when an instance is resumed after
// a crash or shutdown.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/casaops/intervene/internal/persistence"
	"github.com/casaops/intervene/internal/projection"
	"github.com/casaops/intervene/pkg/api"
)

// Config describes how to construct a Host. Zero-value fields fall back
// to in-memory defaults.
type Config struct {
	Store      persistence.InstanceStore
	Projection projection.Store
	Observer   api.Observer
	Logger     *slog.Logger
}

// Host runs workflow instances. Each instance executes as a single
// logical thread of control on its own goroutine; there is no shared
// mutable state between instances beyond the stores.
type Host struct {
	store      persistence.InstanceStore
	projection projection.Store
	observer   api.Observer
	logger     *slog.Logger
	invoker    *Invoker
	registry   *Registry

	mu        sync.Mutex
	workflows map[string]api.WorkflowFunc
	instances map[string]*instance
	nextID    int64

	wg sync.WaitGroup
}

// New creates a Host from cfg.
func New(cfg Config) (*Host, error) {
	if cfg.Store == nil {
		cfg.Store = persistence.NewInMemoryStore()
	}
	if cfg.Projection == nil {
		store, err := projection.NewMemDBStore()
		if err != nil {
			return nil, err
		}
		cfg.Projection = store
	}
	if cfg.Observer == nil {
		cfg.Observer = api.NoopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	registry := NewRegistry()
	return &Host{
		store:      cfg.Store,
		projection: cfg.Projection,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
		registry:   registry,
		invoker:    NewInvoker(registry, cfg.Logger),
		workflows:  make(map[string]api.WorkflowFunc),
		instances:  make(map[string]*instance),
	}, nil
}

// RegisterWorkflow registers a workflow function by name.
func (h *Host) RegisterWorkflow(name string, fn api.WorkflowFunc) error {
	if name == "" {
		return errors.New("workflow name is required")
	}
	if fn == nil {
		return fmt.Errorf("workflow %s: function is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.workflows[name]; ok {
		return fmt.Errorf("workflow already registered: %s", name)
	}
	h.workflows[name] = fn
	return nil
}

// RegisterActivity registers an activity handler by name.
func (h *Host) RegisterActivity(name string, fn api.ActivityFunc) error {
	return h.registry.Register(name, fn)
}

// Registry exposes the activity registry for introspection.
func (h *Host) Registry() *Registry { return h.registry }

// Start launches a new instance of the named workflow and returns its
// instance id. The workflow runs asynchronously; use AwaitCompletion,
// Signal, and Query to interact with it.
func (h *Host) Start(ctx context.Context, workflow string, input any) (string, error) {
	h.mu.Lock()
	fn, ok := h.workflows[workflow]
	if !ok {
		h.mu.Unlock()
		return "", fmt.Errorf("unknown workflow: %s", workflow)
	}
	h.nextID++
	id := fmt.Sprintf("wf-%d", h.nextID)
	h.mu.Unlock()

	inst := h.newInstance(id, uuid.NewString(), workflow, input, nil)

	rec := h.snapshot(inst)
	if err := h.store.SaveInstance(rec); err != nil {
		return "", fmt.Errorf("persist instance %s: %w", id, err)
	}

	h.launch(inst, fn)
	return id, nil
}

// Run starts the workflow and waits for the instance to finish its
// current execution (completed, failed, or parked-and-abandoned).
func (h *Host) Run(ctx context.Context, workflow string, input any) (*api.WorkflowInstance, error) {
	id, err := h.Start(ctx, workflow, input)
	if err != nil {
		return nil, err
	}
	return h.AwaitCompletion(ctx, id)
}

// AwaitCompletion blocks until the instance's execution finishes and
// returns its final state. The instance's own error (if any) is carried
// inside the returned WorkflowInstance, not the second return value.
func (h *Host) AwaitCompletion(ctx context.Context, id string) (*api.WorkflowInstance, error) {
	h.mu.Lock()
	inst, ok := h.instances[id]
	h.mu.Unlock()
	if !ok {
		return h.GetInstance(ctx, id)
	}

	select {
	case <-inst.done:
		return inst.info(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Signal delivers a named signal to an instance. Signals to finished
// instances are logged and ignored; signaling an unknown instance id is
// an error.
func (h *Host) Signal(ctx context.Context, id, name string, payload any) error {
	h.mu.Lock()
	inst, ok := h.instances[id]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("instance not found: %s", id)
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	select {
	case <-inst.done:
		h.logger.Info("signal ignored, instance finished",
			slog.String("instance_id", id),
			slog.String("signal", name),
		)
		return nil
	default:
	}

	h.observer.OnSignal(ctx, inst.infoLocked(), name)

	handler, ok := inst.signalHandlers[name]
	if !ok {
		h.logger.Info("signal ignored, no handler registered",
			slog.String("instance_id", id),
			slog.String("signal", name),
		)
		return nil
	}

	handler(payload)
	inst.recordLocked(persistence.HistoryEvent{
		Kind:    persistence.EventSignal,
		Signal:  name,
		Payload: payload,
	})
	inst.cond.Broadcast()
	return nil
}

// Query runs a registered query handler on an instance and returns its
// result. Queries are side-effect-free and safe at any time, including
// while the instance is suspended or after it finished.
func (h *Host) Query(ctx context.Context, id, name string) (any, error) {
	h.mu.Lock()
	inst, ok := h.instances[id]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("instance not found: %s", id)
	}

	inst.mu.Lock()
	handler, ok := inst.queryHandlers[name]
	inst.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown query %s on instance %s", name, id)
	}
	return handler()
}

// GetInstance looks up a workflow instance, live or persisted.
func (h *Host) GetInstance(ctx context.Context, id string) (*api.WorkflowInstance, error) {
	h.mu.Lock()
	inst, ok := h.instances[id]
	h.mu.Unlock()
	if ok {
		return inst.info(), nil
	}

	rec, err := h.store.GetInstance(id)
	if err != nil {
		if errors.Is(err, persistence.ErrInstanceNotFound) {
			return nil, fmt.Errorf("instance not found: %s", id)
		}
		return nil, err
	}
	return recordToInfo(rec), nil
}

// ListInstances returns persisted instances matching the given options.
func (h *Host) ListInstances(ctx context.Context, opts api.InstanceListOptions) ([]*api.WorkflowInstance, error) {
	recs, err := h.store.ListInstances(persistence.InstanceFilter{
		WorkflowName: opts.WorkflowName,
		Status:       opts.Status,
	})
	if err != nil {
		return nil, err
	}
	out := make([]*api.WorkflowInstance, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordToInfo(rec))
	}
	return out, nil
}

// Resume re-executes a persisted instance, replaying its recorded history
// so completed side effects are not repeated. Only instances that are not
// currently live can be resumed.
func (h *Host) Resume(ctx context.Context, id string) error {
	h.mu.Lock()
	if _, live := h.instances[id]; live {
		h.mu.Unlock()
		return fmt.Errorf("instance %s is already running", id)
	}
	h.mu.Unlock()

	rec, err := h.store.GetInstance(id)
	if err != nil {
		if errors.Is(err, persistence.ErrInstanceNotFound) {
			return fmt.Errorf("instance not found: %s", id)
		}
		return err
	}
	if rec.Status == api.StatusCompleted || rec.Status == api.StatusFailed {
		return fmt.Errorf("cannot resume instance %s in status %s", id, rec.Status)
	}

	h.mu.Lock()
	fn, ok := h.workflows[rec.Workflow]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("workflow definition not found for instance %s (name=%s)", id, rec.Workflow)
	}

	inst := h.newInstance(rec.ID, rec.RunID, rec.Workflow, rec.Input, rec.History)
	h.launch(inst, fn)
	return nil
}

// RecoverStuckInstances resumes every persisted instance still marked
// RUNNING or WAITING, for example after a process crash. It returns the
// number of instances it resumed.
//
// It is intended to be called on process startup, before new work is
// accepted.
func (h *Host) RecoverStuckInstances(ctx context.Context) (int, error) {
	count := 0
	for _, status := range []api.Status{api.StatusRunning, api.StatusWaiting} {
		recs, err := h.store.ListInstances(persistence.InstanceFilter{Status: status})
		if err != nil {
			return count, err
		}
		for _, rec := range recs {
			if err := h.Resume(ctx, rec.ID); err != nil {
				return count, fmt.Errorf("resume %s: %w", rec.ID, err)
			}
			count++
		}
	}
	return count, nil
}

// Shutdown abandons all in-flight waits and blocks until every instance
// goroutine has parked its state. Suspended instances are persisted as
// WAITING and can be recovered with RecoverStuckInstances.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	for _, inst := range h.instances {
		inst.cancel()
		inst.mu.Lock()
		inst.cond.Broadcast()
		inst.mu.Unlock()
	}
	h.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) newInstance(id, runID, workflow string, input any, history []persistence.HistoryEvent) *instance {
	ctx, cancel := context.WithCancel(context.Background())
	inst := &instance{
		host:           h,
		id:             id,
		runID:          runID,
		workflow:       workflow,
		input:          input,
		ctx:            ctx,
		cancel:         cancel,
		status:         api.StatusRunning,
		signalHandlers: make(map[string]func(payload any)),
		queryHandlers:  make(map[string]func() (any, error)),
		attrs:          make(map[string]any),
		history:        history,
		seq:            make(map[string]int),
		done:           make(chan struct{}),
	}
	inst.cond = sync.NewCond(&inst.mu)
	return inst
}

func (h *Host) launch(inst *instance, fn api.WorkflowFunc) {
	h.mu.Lock()
	h.instances[inst.id] = inst
	h.mu.Unlock()

	h.wg.Add(1)
	go h.runInstance(inst, fn)
}

func (h *Host) runInstance(inst *instance, fn api.WorkflowFunc) {
	defer h.wg.Done()
	defer inst.cancel()

	h.observer.OnWorkflowStart(inst.ctx, inst.info())

	out, err := runSafely(fn, &wfContext{inst: inst}, inst.input)

	inst.mu.Lock()
	switch {
	case err == nil && isBlockedResult(out):
		inst.status = api.StatusWaiting
		inst.output = out
	case err == nil:
		inst.status = api.StatusCompleted
		inst.output = out
	case isAbandonedWait(err):
		// Host shutdown while suspended; leave the instance recoverable.
		inst.status = api.StatusWaiting
	case isBlockedErr(err):
		// A pending intervention surfaced as an error; the instance stays
		// recoverable so the intervention can still be resolved.
		inst.status = api.StatusWaiting
		inst.err = err
	default:
		inst.status = api.StatusFailed
		inst.err = err
	}
	h.persistLocked(inst)
	info := inst.infoLocked()
	inst.mu.Unlock()

	close(inst.done)

	switch info.Status {
	case api.StatusCompleted:
		h.observer.OnWorkflowCompleted(inst.ctx, info)
	case api.StatusWaiting:
		h.observer.OnWorkflowBlocked(inst.ctx, info)
	case api.StatusFailed:
		h.observer.OnWorkflowFailed(inst.ctx, info, err)
	}
}

func runSafely(fn api.WorkflowFunc, ctx api.WorkflowContext, input any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workflow panic: %v", r)
		}
	}()
	return fn(ctx, input)
}

// persistLocked writes the instance's current state through the store.
// Persistence failures are logged, not propagated: the in-memory run
// stays authoritative and the next write retries implicitly.
func (h *Host) persistLocked(inst *instance) {
	if err := h.store.UpdateInstance(h.snapshot(inst)); err != nil {
		if errors.Is(err, persistence.ErrInstanceNotFound) {
			if err := h.store.SaveInstance(h.snapshot(inst)); err == nil {
				return
			}
		}
		h.logger.Warn("instance persist failed",
			slog.String("instance_id", inst.id),
			slog.Any("error", err),
		)
	}
}

func (h *Host) snapshot(inst *instance) *persistence.InstanceRecord {
	errStr := ""
	if inst.err != nil {
		errStr = inst.err.Error()
	}
	history := make([]persistence.HistoryEvent, len(inst.history))
	copy(history, inst.history)
	return &persistence.InstanceRecord{
		ID:       inst.id,
		RunID:    inst.runID,
		Workflow: inst.workflow,
		Status:   inst.status,
		Input:    inst.input,
		Output:   inst.output,
		Err:      errStr,
		History:  history,
	}
}

func recordToInfo(rec *persistence.InstanceRecord) *api.WorkflowInstance {
	info := &api.WorkflowInstance{
		ID:     rec.ID,
		RunID:  rec.RunID,
		Name:   rec.Workflow,
		Status: rec.Status,
		Output: rec.Output,
		Input:  rec.Input,
	}
	if rec.Err != "" {
		info.Err = errors.New(rec.Err)
	}
	return info
}

func isBlockedResult(out any) bool {
	switch out.(type) {
	case api.BlockedResult, *api.BlockedResult:
		return true
	}
	return false
}

func isAbandonedWait(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isBlockedErr(err error) bool {
	_, ok := api.IsBlockedError(err)
	return ok
}
