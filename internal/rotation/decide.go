// Package rotation decides, per secret, whether to refresh the cached copy now
// or arm a crontab trigger for the next rotation, and carries out that decision.
package rotation

import (
	"time"

	"github.com/systmms/secretcron/internal/cache"
)

// Action is what the checker does for one secret.
type Action string

const (
	// ActionRefreshMissing refreshes a secret that has no usable cache record.
	ActionRefreshMissing Action = "refresh-missing"
	// ActionRefreshDue refreshes a secret whose rotation date has passed.
	ActionRefreshDue Action = "refresh-due"
	// ActionArm arms a trigger for a future rotation date.
	ActionArm Action = "arm"
	// ActionUnmanaged leaves a secret alone because its rotation date is unknown.
	ActionUnmanaged Action = "unmanaged"
)

// Decide maps a cache lookup to an action. found is false when the record is
// absent or malformed. A rotation date equal to now counts as due.
func Decide(rec *cache.Record, found bool, now time.Time) Action {
	switch {
	case !found || rec == nil:
		return ActionRefreshMissing
	case !rec.HasRotationDate():
		return ActionUnmanaged
	case !now.Before(*rec.NextRotationDate):
		return ActionRefreshDue
	default:
		return ActionArm
	}
}

// State is the lifecycle state of a secret, derived from its cache record and trigger.
type State string

const (
	StateNoCache           State = "NO_CACHE"
	StateCachedWithDate    State = "CACHED_WITH_DATE"
	StateCachedWithoutDate State = "CACHED_WITHOUT_DATE"
	StateArmed             State = "ARMED"
)

// StateOf reports the lifecycle state for display.
func StateOf(rec *cache.Record, found, armed bool) State {
	switch {
	case !found || rec == nil:
		return StateNoCache
	case !rec.HasRotationDate():
		return StateCachedWithoutDate
	case armed:
		return StateArmed
	default:
		return StateCachedWithDate
	}
}
