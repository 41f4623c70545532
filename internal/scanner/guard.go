package scanner

import (
	"time"

	"task-timeout-service/internal/models"
)

// alreadyNotified is the idempotency predicate: the marker only blocks
// re-escalation when it was set for the same deadline instant. A marker left
// over from a previous cycle (yesterday's deadline on a daily task) is stale
// and does not block, which makes cycle rollover self-resetting.
func alreadyNotified(task models.Task, deadline time.Time) bool {
	return task.TimeoutNotifiedAt != nil &&
		task.NotifiedDeadline != nil &&
		task.NotifiedDeadline.Equal(deadline)
}
