package workflows

import (
	"fmt"

	"github.com/casaops/intervene"
	"github.com/casaops/intervene/activities"
	"github.com/casaops/intervene/pkg/api"
)

// PermitRetrieval pulls the permit records for a property and stores
// them: lookupCounty, retrievePermits, storePermits. Input is the
// property address.
func PermitRetrieval(ctx api.WorkflowContext, input any) (any, error) {
	address, ok := input.(string)
	if !ok {
		return nil, fmt.Errorf("PermitRetrieval: input must be a string address, got %T", input)
	}

	c := intervene.NewCoordinator(ctx)

	out, err := c.Execute(activities.LookupCounty, []any{address}, activityTimeout)
	if err != nil {
		return finish(c, err)
	}
	county, ok := out.(activities.CountyResult)
	if !ok {
		return nil, fmt.Errorf("lookupCounty: unexpected result type %T", out)
	}

	out, err = c.Execute(activities.RetrievePermits, []any{county.County, address}, activityTimeout)
	if err != nil {
		return finish(c, err)
	}
	batch, ok := out.(activities.PermitBatch)
	if !ok {
		return nil, fmt.Errorf("retrievePermits: unexpected result type %T", out)
	}

	if _, err := c.Execute(activities.StorePermits, []any{batch}, activityTimeout); err != nil {
		return finish(c, err)
	}
	return batch, nil
}
