package persistence

import (
	"errors"
	"time"

	"github.com/casaops/intervene/pkg/api"
)

// ErrInstanceNotFound is returned when a workflow instance is not found.
var ErrInstanceNotFound = errors.New("instance not found")

// Event kinds recorded in an instance history.
const (
	// EventTimestamp records a workflow-clock read.
	EventTimestamp = "timestamp"
	// EventActivity records the terminal outcome of one activity
	// invocation (success, or failure after the policy was exhausted).
	EventActivity = "activity"
	// EventSignal records a delivered signal so replay re-applies it.
	EventSignal = "signal"
	// EventAwait records the outcome of a bounded await.
	EventAwait = "await"
)

// HistoryEvent is one entry in an instance's append-only history. Replay
// consumes events in order instead of re-performing the side effects they
// describe, so a resumed instance reconstructs identical state.
type HistoryEvent struct {
	Kind string

	// EventActivity fields.
	ExecutionID string
	Activity    string
	Attempts    int
	Result      any
	Error       string

	// EventSignal fields.
	Signal  string
	Payload any

	// EventAwait field: whether the condition was met before the timeout.
	Resolved bool

	// EventTimestamp field.
	At time.Time
}

// InstanceRecord is the persisted form of a workflow instance.
type InstanceRecord struct {
	ID       string
	RunID    string
	Workflow string
	Status   api.Status
	Input    any
	Output   any
	Err      string
	History  []HistoryEvent
}

// InstanceFilter is used to select instances from the store.
// Empty string / zero status mean "no filter" for that field.
type InstanceFilter struct {
	WorkflowName string
	Status       api.Status
}

// InstanceStore handles storage of workflow instances and their histories.
type InstanceStore interface {
	SaveInstance(rec *InstanceRecord) error
	UpdateInstance(rec *InstanceRecord) error
	GetInstance(id string) (*InstanceRecord, error)
	ListInstances(filter InstanceFilter) ([]*InstanceRecord, error)
}
