// Package workflows provides the workflow definitions shipped with the
// module. Each workflow routes its activity calls through an
// intervene.Coordinator, so a failing activity blocks the workflow on an
// intervention instead of failing it outright.
package workflows

import (
	"time"

	"github.com/casaops/intervene"
	"github.com/casaops/intervene/pkg/api"
)

// Workflow names as registered by RegisterAll.
const (
	CountyLookupName             = "CountyLookup"
	PermitRetrievalName          = "PermitRetrieval"
	ServiceRequestProcessingName = "ServiceRequestProcessing"
	SubscriptionCreateName       = "SubscriptionCreate"
	SubscriptionUpdateName       = "SubscriptionUpdate"
	SubscriptionCancelName       = "SubscriptionCancel"
)

// Default per-attempt activity timeout used by all bundled workflows.
const activityTimeout = 30 * time.Second

// RegisterAll registers every bundled workflow on the host.
func RegisterAll(h *intervene.Host) error {
	for name, fn := range map[string]api.WorkflowFunc{
		CountyLookupName:             CountyLookup,
		PermitRetrievalName:          PermitRetrieval,
		ServiceRequestProcessingName: ServiceRequestProcessing,
		SubscriptionCreateName:       SubscriptionCreate,
		SubscriptionUpdateName:       SubscriptionUpdate,
		SubscriptionCancelName:       SubscriptionCancel,
	} {
		if err := h.RegisterWorkflow(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// finish maps an Execute error to a workflow return. A pending
// intervention becomes an api.BlockedResult so the instance is persisted
// as recoverable; everything else propagates as a workflow failure.
func finish(c *intervene.Coordinator, err error) (any, error) {
	if res, ok := c.Blocked(err); ok {
		return res, nil
	}
	return nil, err
}
