// Package ledger owns the per (task, user) rest bookkeeping: whether an
// active rest blocks escalation, granting rests on escalation, and burning
// them down as reminder pings fire.
package ledger

import (
	"context"
	"fmt"
	"time"

	"task-timeout-service/internal/logging"
	"task-timeout-service/internal/models"
	"task-timeout-service/internal/schedule"
)

type delayStore interface {
	HasActiveDelay(ctx context.Context, taskID int64) (bool, error)
	UpsertDelay(ctx context.Context, dl models.Delay) (models.Delay, error)
	GetDueReminders(ctx context.Context, now time.Time) ([]models.Delay, error)
	ConsumeRest(ctx context.Context, taskID, userID int64, now, next time.Time) (models.Delay, error)
	DeactivateDelay(ctx context.Context, taskID, userID int64) error
}

type Ledger struct {
	store  delayStore
	logger *logging.Logger
}

func New(store delayStore, logger *logging.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// HasActiveDelay reports whether any user still holds an unexpired rest for
// the task. This gates the whole task, not single users.
func (l *Ledger) HasActiveDelay(ctx context.Context, task models.Task) (bool, error) {
	return l.store.HasActiveDelay(ctx, task.ID)
}

// GrantOrRefresh fetches-or-creates the (task, user) row and overwrites its
// rest configuration from the task's current settings. The remaining count is
// reset to the task's configured maximum, not decremented; the reminder sweep
// is what burns rests down.
func (l *Ledger) GrantOrRefresh(ctx context.Context, task models.Task, userID int64, now time.Time) (models.Delay, error) {
	dl := models.Delay{
		TaskID:  task.ID,
		UserID:  userID,
		RestMax: task.RestMax,
	}

	if rest, err := schedule.RestDuration(task); err == nil && rest > 0 {
		dl.RestTime = rest
		next := now.Add(rest)
		dl.NextAlarmAt = &next
	} else if task.RestMax > 0 {
		// A rest with no parseable window would never be selected by the
		// reminder sweep, so nothing could ever burn it down and the task
		// would stay gated forever. Grant no allowance instead.
		l.logger.Warnf("Task %d: rest_time %q is unusable, granting no rest allowance to user %d", task.ID, task.RestTime, userID)
		dl.RestMax = 0
	}

	updated, err := l.store.UpsertDelay(ctx, dl)
	if err != nil {
		return models.Delay{}, fmt.Errorf("failed to grant delay for task %d user %d: %w", task.ID, userID, err)
	}
	return updated, nil
}

// DueReminders returns delays whose rest window elapsed while still active.
func (l *Ledger) DueReminders(ctx context.Context, now time.Time) ([]models.Delay, error) {
	return l.store.GetDueReminders(ctx, now)
}

// RevokeRest zeroes the remaining allowance so the row neither gates the task
// nor feeds the reminder sweep again. Used when the owning task disappeared
// out from under a due reminder.
func (l *Ledger) RevokeRest(ctx context.Context, dl models.Delay) error {
	if err := l.store.DeactivateDelay(ctx, dl.TaskID, dl.UserID); err != nil {
		return fmt.Errorf("failed to revoke rest for task %d user %d: %w", dl.TaskID, dl.UserID, err)
	}
	return nil
}

// ConsumeRest burns one rest and schedules the next ping one rest window out.
func (l *Ledger) ConsumeRest(ctx context.Context, dl models.Delay, now time.Time) (models.Delay, error) {
	updated, err := l.store.ConsumeRest(ctx, dl.TaskID, dl.UserID, now, now.Add(dl.RestTime))
	if err != nil {
		return models.Delay{}, fmt.Errorf("failed to consume rest for task %d user %d: %w", dl.TaskID, dl.UserID, err)
	}
	return updated, nil
}
