package intervene

import (
	"time"

	"github.com/casaops/intervene/pkg/api"
)

// blockedAttrsLocked builds the projected search attributes from the
// current blocked set. With nothing blocked every attribute is cleared;
// with several records blocked the scalar attributes reflect the most
// recent escalation. Caller holds c.mu.
func (c *Coordinator) blockedAttrsLocked() map[string]any {
	blocked := c.records.blocked()
	if len(blocked) == 0 {
		return clearedAttrs()
	}
	latest := blocked[len(blocked)-1]
	return map[string]any{
		api.AttrIsBlocked:       true,
		api.AttrBlockedActivity: latest.ActivityName,
		api.AttrBlockedError:    latest.Error,
		api.AttrBlockedAt:       latest.EndTime,
		api.AttrInterventionID:  latest.InterventionID,
	}
}

// finalFailureAttrsLocked builds the attributes after a post-intervention
// failure. The record has left the blocked set, but the failure details
// stay visible to operators; isBlocked reflects whatever else is still
// awaiting intervention. Caller holds c.mu.
func (c *Coordinator) finalFailureAttrsLocked(execID string) map[string]any {
	rec, ok := c.records.get(execID)
	if !ok {
		return clearedAttrs()
	}
	return map[string]any{
		api.AttrIsBlocked:       len(c.records.blocked()) > 0,
		api.AttrBlockedActivity: rec.ActivityName,
		api.AttrBlockedError:    rec.Error,
		api.AttrBlockedAt:       rec.EndTime,
		api.AttrInterventionID:  rec.InterventionID,
	}
}

func clearedAttrs() map[string]any {
	return map[string]any{
		api.AttrIsBlocked:       false,
		api.AttrBlockedActivity: "",
		api.AttrBlockedError:    "",
		api.AttrBlockedAt:       time.Time{},
		api.AttrInterventionID:  "",
	}
}
