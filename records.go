package intervene

import (
	"fmt"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/casaops/intervene/pkg/api"
)

// FSM triggers for activity execution records.
const (
	triggerStart     = "start"
	triggerComplete  = "complete"
	triggerFail      = "fail"
	triggerEscalate  = "escalate"
	triggerResolve   = "resolve"
	triggerFailFinal = "failFinal"
)

// newExecutionFSM builds the per-record state machine. Every state change
// of an ActivityExecution goes through it, so illegal transitions surface
// as errors instead of silently corrupting a record.
func newExecutionFSM() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(api.StatePending)

	fsm.Configure(api.StatePending).
		Permit(triggerStart, api.StateRunning)

	fsm.Configure(api.StateRunning).
		Permit(triggerComplete, api.StateCompleted).
		Permit(triggerFail, api.StateFailed)

	fsm.Configure(api.StateFailed).
		Permit(triggerEscalate, api.StateAwaitingIntervention)

	fsm.Configure(api.StateAwaitingIntervention).
		Permit(triggerResolve, api.StateInterventionResolved)

	fsm.Configure(api.StateInterventionResolved).
		Permit(triggerComplete, api.StateCompleted).
		Permit(triggerFailFinal, api.StateFailedAfterIntervention)

	return fsm
}

type trackedExecution struct {
	rec api.ActivityExecution
	fsm *stateless.StateMachine
}

func (t *trackedExecution) fire(trigger string) error {
	if err := t.fsm.Fire(trigger); err != nil {
		return fmt.Errorf("execution %s: %w", t.rec.ExecutionID, err)
	}
	t.rec.State = t.fsm.MustState().(api.ExecutionState)
	return nil
}

// recordSet is the execution record store of one workflow instance: every
// activity invocation ever attempted, keyed by execution id, plus the
// intervention id map. Records are never deleted.
//
// recordSet is not goroutine-safe; the owning Coordinator serializes
// access.
type recordSet struct {
	records       map[string]*trackedExecution
	order         []string
	interventions map[string]string // interventionID -> executionID
	issued        []string          // every intervention id ever issued, in order
}

func newRecordSet() *recordSet {
	return &recordSet{
		records:       make(map[string]*trackedExecution),
		interventions: make(map[string]string),
	}
}

func (rs *recordSet) start(executionID, activity string, now time.Time) error {
	if _, ok := rs.records[executionID]; ok {
		return fmt.Errorf("duplicate execution id: %s", executionID)
	}
	t := &trackedExecution{
		rec: api.ActivityExecution{
			ExecutionID:  executionID,
			ActivityName: activity,
			Attempt:      1,
			State:        api.StatePending,
			StartTime:    now,
		},
		fsm: newExecutionFSM(),
	}
	if err := t.fire(triggerStart); err != nil {
		return err
	}
	rs.records[executionID] = t
	rs.order = append(rs.order, executionID)
	return nil
}

func (rs *recordSet) complete(executionID string, result any, now time.Time) error {
	t, err := rs.lookup(executionID)
	if err != nil {
		return err
	}
	if err := t.fire(triggerComplete); err != nil {
		return err
	}
	t.rec.Result = result
	t.rec.Error = ""
	t.rec.EndTime = now
	return nil
}

func (rs *recordSet) fail(executionID, errMsg string, attempts int) error {
	t, err := rs.lookup(executionID)
	if err != nil {
		return err
	}
	if err := t.fire(triggerFail); err != nil {
		return err
	}
	t.rec.Error = errMsg
	if attempts > 0 {
		t.rec.Attempt = attempts
	}
	return nil
}

func (rs *recordSet) escalate(executionID, interventionID string, now time.Time) error {
	t, err := rs.lookup(executionID)
	if err != nil {
		return err
	}
	if err := t.fire(triggerEscalate); err != nil {
		return err
	}
	t.rec.InterventionID = interventionID
	t.rec.EndTime = now
	rs.interventions[interventionID] = executionID
	rs.issued = append(rs.issued, interventionID)
	return nil
}

// resolve flips the record behind interventionID to INTERVENTION_RESOLVED.
// known is false when the id was never issued; changed is false when the
// record had already left AWAITING_INTERVENTION (re-delivered signal), in
// which case resolve is a no-op.
func (rs *recordSet) resolve(interventionID string) (executionID string, changed, known bool) {
	executionID, known = rs.interventions[interventionID]
	if !known {
		return "", false, false
	}
	t := rs.records[executionID]
	if t.rec.State != api.StateAwaitingIntervention {
		return executionID, false, true
	}
	if err := t.fire(triggerResolve); err != nil {
		return executionID, false, true
	}
	return executionID, true, true
}

func (rs *recordSet) failFinal(executionID, errMsg string, now time.Time) error {
	t, err := rs.lookup(executionID)
	if err != nil {
		return err
	}
	if err := t.fire(triggerFailFinal); err != nil {
		return err
	}
	t.rec.Error = errMsg
	t.rec.EndTime = now
	return nil
}

func (rs *recordSet) lookup(executionID string) (*trackedExecution, error) {
	t, ok := rs.records[executionID]
	if !ok {
		return nil, fmt.Errorf("unknown execution id: %s", executionID)
	}
	return t, nil
}

func (rs *recordSet) state(executionID string) api.ExecutionState {
	if t, ok := rs.records[executionID]; ok {
		return t.rec.State
	}
	return ""
}

func (rs *recordSet) get(executionID string) (api.ActivityExecution, bool) {
	t, ok := rs.records[executionID]
	if !ok {
		return api.ActivityExecution{}, false
	}
	return t.rec, true
}

// snapshot returns a copy of every record, keyed by execution id.
func (rs *recordSet) snapshot() map[string]api.ActivityExecution {
	out := make(map[string]api.ActivityExecution, len(rs.records))
	for id, t := range rs.records {
		out[id] = t.rec
	}
	return out
}

// blocked returns the records currently awaiting intervention, in the
// order they blocked.
func (rs *recordSet) blocked() []api.ActivityExecution {
	var out []api.ActivityExecution
	for _, id := range rs.order {
		if t := rs.records[id]; t.rec.State == api.StateAwaitingIntervention {
			out = append(out, t.rec)
		}
	}
	return out
}

// interventionIDs returns every intervention id ever issued, resolved or
// not, in issue order.
func (rs *recordSet) interventionIDs() []string {
	out := make([]string, len(rs.issued))
	copy(out, rs.issued)
	return out
}

// pendingInterventionIDs returns the ids of interventions still awaiting
// resolution, in issue order.
func (rs *recordSet) pendingInterventionIDs() []string {
	var out []string
	for _, id := range rs.issued {
		execID := rs.interventions[id]
		if t := rs.records[execID]; t.rec.State == api.StateAwaitingIntervention {
			out = append(out, id)
		}
	}
	return out
}
