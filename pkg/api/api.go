package api

import (
	"encoding/gob"
	"time"
)

func init() {
	gob.Register(BlockedResult{})
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(time.Time{})
}

// ExecutionState is the lifecycle state of one activity execution record.
type ExecutionState string

const (
	StatePending                 ExecutionState = "PENDING"
	StateRunning                 ExecutionState = "RUNNING"
	StateCompleted               ExecutionState = "COMPLETED"
	StateFailed                  ExecutionState = "FAILED"
	StateAwaitingIntervention    ExecutionState = "AWAITING_INTERVENTION"
	StateInterventionResolved    ExecutionState = "INTERVENTION_RESOLVED"
	StateFailedAfterIntervention ExecutionState = "FAILED_AFTER_INTERVENTION"
)

// Terminal reports whether the state permits no further transitions.
func (s ExecutionState) Terminal() bool {
	return s == StateCompleted || s == StateFailedAfterIntervention
}

// ActivityExecution is one record per distinct invocation of a named
// activity within a workflow instance. Records are created when the
// activity is first invoked and are never deleted; on replay they are
// reconstructed verbatim from the instance history.
type ActivityExecution struct {
	// ExecutionID is unique within the workflow instance. It is derived
	// from the activity name plus a per-instance sequence number so that
	// replay regenerates identical IDs.
	ExecutionID string

	// ActivityName identifies which external operation this is.
	ActivityName string

	// Attempt counts automatic attempts. It is not incremented further
	// once retries are exhausted and the intervention begins.
	Attempt int

	State ExecutionState

	// StartTime and EndTime are workflow-clock timestamps supplied by the
	// host, not wall-clock reads; they replay deterministically.
	StartTime time.Time
	EndTime   time.Time

	// Error holds the last failure message. Empty unless the record is in
	// FAILED, AWAITING_INTERVENTION, or FAILED_AFTER_INTERVENTION.
	Error string

	// InterventionID is set once the record enters AWAITING_INTERVENTION.
	// Format: {workflowID}:{runID}:{executionID}.
	InterventionID string

	// Result is the activity's return value, set only on COMPLETED.
	Result any
}

// Status represents the lifecycle state of a workflow instance.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusWaiting   Status = "WAITING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// WorkflowInstance holds the externally visible state of one run.
type WorkflowInstance struct {
	ID     string
	RunID  string
	Name   string
	Status Status
	Output any
	Err    error

	// Input is the original input provided when the instance was first
	// started. It is reused for deterministic replay on resume.
	Input any
}

// InstanceListOptions controls how instances are listed.
// Zero values mean "no filter" for that field.
type InstanceListOptions struct {
	WorkflowName string
	Status       Status
}

// RetryPolicy controls automatic retries of an activity invocation.
// MaxAttempts includes the first attempt.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// InitialRetryPolicy is the automatic retry budget applied to the first
// invocation of every activity: a small bounded number of attempts with a
// short exponential backoff.
func InitialRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    2,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
	}
}

// PostInterventionRetryPolicy is applied after an intervention has been
// resolved: exactly one attempt, no backoff. An operator has already
// stepped in, so masking a further failure behind automatic retry would
// hide the problem again.
func PostInterventionRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Signal and query names form the external contract of every instance.
const (
	SignalResolveIntervention = "resolveIntervention"

	QueryActivityStates    = "getActivityStates"
	QueryInterventionIDs   = "getInterventionIds"
	QueryBlockedActivities = "getBlockedActivities"
	QueryIsBlocked         = "isWorkflowBlocked"
)

// Projected search-attribute keys. These mirror blocking state into
// externally indexed metadata so operators can find stuck instances
// without inspecting each one. They are best-effort: losing them never
// affects the state machine.
const (
	AttrIsBlocked       = "IsBlocked"
	AttrBlockedActivity = "BlockedActivity"
	AttrBlockedError    = "BlockedError"
	AttrBlockedAt       = "BlockedAt"
	AttrInterventionID  = "InterventionId"
)

// BlockedStatus is the Status field value of a BlockedResult.
const BlockedStatus = "blocked"

// BlockedResult is the structured payload a workflow returns when it
// terminates while one or more interventions are still pending.
type BlockedResult struct {
	Status          string   `json:"status"`
	BlockedActivity string   `json:"blockedActivity"`
	InterventionIDs []string `json:"interventionIds"`
	Message         string   `json:"message"`
}
