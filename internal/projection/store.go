// Package projection maintains the externally indexed search attributes
// mirrored out of workflow instances, so an operator-facing listing tool
// can find stuck instances without inspecting each one.
//
// Attributes are best-effort metadata, not part of the correctness
// contract: a write failure only degrades operator visibility.
package projection

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no attributes exist for an instance.
var ErrNotFound = errors.New("attributes not found")

// Attributes is the fixed set of indexed attributes attached to one
// workflow instance.
type Attributes struct {
	InstanceID      string
	IsBlocked       bool
	BlockedActivity string
	BlockedError    string
	BlockedAt       time.Time
	InterventionID  string
}

// Filter selects attribute rows. Zero values mean "no filter".
type Filter struct {
	// Blocked, if non-nil, limits results to rows with the given
	// IsBlocked value.
	Blocked *bool

	// BlockedActivity, if non-empty, limits results to instances blocked
	// on the named activity.
	BlockedActivity string
}

// Store is an indexed attribute store consumed by operator tooling.
// Implementations must tolerate repeated upserts for the same instance.
type Store interface {
	Upsert(ctx context.Context, attrs Attributes) error
	Get(ctx context.Context, instanceID string) (Attributes, error)
	List(ctx context.Context, filter Filter) ([]Attributes, error)
}

// ListBlocked returns all rows currently marked blocked.
func ListBlocked(ctx context.Context, s Store) ([]Attributes, error) {
	blocked := true
	return s.List(ctx, Filter{Blocked: &blocked})
}
