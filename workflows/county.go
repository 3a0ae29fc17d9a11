package workflows

import (
	"fmt"

	"github.com/casaops/intervene"
	"github.com/casaops/intervene/activities"
	"github.com/casaops/intervene/pkg/api"
)

// CountyLookup resolves the county of a property address. The geocoder
// sometimes returns the county directly; the separate lookup runs only
// when it does not.
func CountyLookup(ctx api.WorkflowContext, input any) (any, error) {
	address, ok := input.(string)
	if !ok {
		return nil, fmt.Errorf("CountyLookup: input must be a string address, got %T", input)
	}

	c := intervene.NewCoordinator(ctx)

	out, err := c.Execute(activities.GeocodeProperty, []any{address}, activityTimeout)
	if err != nil {
		return finish(c, err)
	}
	geo, ok := out.(activities.GeocodeResult)
	if !ok {
		return nil, fmt.Errorf("geocodeProperty: unexpected result type %T", out)
	}

	if geo.County != "" {
		return activities.CountyResult{County: geo.County}, nil
	}

	out, err = c.Execute(activities.LookupCounty, []any{geo.Latitude, geo.Longitude}, activityTimeout)
	if err != nil {
		return finish(c, err)
	}
	county, ok := out.(activities.CountyResult)
	if !ok {
		return nil, fmt.Errorf("lookupCounty: unexpected result type %T", out)
	}
	return county, nil
}
