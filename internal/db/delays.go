package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"task-timeout-service/internal/models"
)

const delayColumns = `
	task_id, user_id, rest_time_seconds, rest_max,
	next_alarm_at, alarm_count, last_alarm_at, created_at, updated_at`

const qualifiedDelayColumns = `
	d.task_id, d.user_id, d.rest_time_seconds, d.rest_max,
	d.next_alarm_at, d.alarm_count, d.last_alarm_at, d.created_at, d.updated_at`

// HasActiveDelay reports whether any ledger row for the task still holds an
// unspent rest. A row without a scheduled ping can never be burned down by
// the reminder sweep, so it must not gate the task either.
func (d *DB) HasActiveDelay(ctx context.Context, taskID int64) (bool, error) {
	query := `
	SELECT EXISTS (
		SELECT 1 FROM delays
		WHERE task_id = $1 AND rest_max > 0 AND next_alarm_at IS NOT NULL
	)`

	var active bool
	if err := d.Pool.QueryRow(ctx, query, taskID).Scan(&active); err != nil {
		return false, fmt.Errorf("failed to check active delay for task %d: %w", taskID, err)
	}
	return active, nil
}

// GetDelaysByTaskID returns every ledger row tracked for a task.
func (d *DB) GetDelaysByTaskID(ctx context.Context, taskID int64) ([]models.Delay, error) {
	query := `SELECT ` + delayColumns + ` FROM delays WHERE task_id = $1 ORDER BY user_id`

	rows, err := d.Pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get delays for task %d: %w", taskID, err)
	}
	defer rows.Close()

	var delays []models.Delay
	for rows.Next() {
		dl, err := scanDelay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delay: %w", err)
		}
		delays = append(delays, dl)
	}
	return delays, rows.Err()
}

// UpsertDelay creates or refreshes the (task, user) row, overwriting the rest
// configuration with the values passed in.
func (d *DB) UpsertDelay(ctx context.Context, dl models.Delay) (models.Delay, error) {
	query := `
	INSERT INTO delays (
		task_id, user_id, rest_time_seconds, rest_max, next_alarm_at,
		alarm_count, last_alarm_at, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, 0, NULL, NOW(), NOW())
	ON CONFLICT (task_id, user_id)
	DO UPDATE SET
		rest_time_seconds = EXCLUDED.rest_time_seconds,
		rest_max = EXCLUDED.rest_max,
		next_alarm_at = EXCLUDED.next_alarm_at,
		updated_at = NOW()
	RETURNING ` + delayColumns

	updated, err := scanDelay(d.Pool.QueryRow(ctx, query,
		dl.TaskID, dl.UserID, int64(dl.RestTime.Seconds()), dl.RestMax, dl.NextAlarmAt))
	if err != nil {
		return models.Delay{}, fmt.Errorf("failed to upsert delay (task %d, user %d): %w", dl.TaskID, dl.UserID, err)
	}
	return updated, nil
}

// GetDueReminders returns rows whose rest window has elapsed while a rest is
// still active, ordered oldest first. The join keeps reminders from firing
// for deactivated or deleted tasks.
func (d *DB) GetDueReminders(ctx context.Context, now time.Time) ([]models.Delay, error) {
	query := `
	SELECT ` + qualifiedDelayColumns + `
	FROM delays d
	JOIN tasks t ON t.id = d.task_id AND t.status = true
	WHERE d.rest_max > 0 AND d.next_alarm_at IS NOT NULL AND d.next_alarm_at <= $1
	ORDER BY d.next_alarm_at`

	rows, err := d.Pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due reminders: %w", err)
	}
	defer rows.Close()

	var delays []models.Delay
	for rows.Next() {
		dl, err := scanDelay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due reminder: %w", err)
		}
		delays = append(delays, dl)
	}
	return delays, rows.Err()
}

// ConsumeRest burns one rest on the row and schedules the next reminder ping.
func (d *DB) ConsumeRest(ctx context.Context, taskID, userID int64, now, next time.Time) (models.Delay, error) {
	query := `
	UPDATE delays
	SET rest_max = rest_max - 1,
	    alarm_count = alarm_count + 1,
	    last_alarm_at = $1,
	    next_alarm_at = $2,
	    updated_at = NOW()
	WHERE task_id = $3 AND user_id = $4 AND rest_max > 0
	RETURNING ` + delayColumns

	updated, err := scanDelay(d.Pool.QueryRow(ctx, query, now, next, taskID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Delay{}, ErrDelayNotFound
		}
		return models.Delay{}, fmt.Errorf("failed to consume rest (task %d, user %d): %w", taskID, userID, err)
	}
	return updated, nil
}

// DeactivateDelay zeroes the row's rest allowance and unschedules its ping so
// the sweep stops selecting it.
func (d *DB) DeactivateDelay(ctx context.Context, taskID, userID int64) error {
	query := `
	UPDATE delays
	SET rest_max = 0, next_alarm_at = NULL, updated_at = NOW()
	WHERE task_id = $1 AND user_id = $2`

	if _, err := d.Pool.Exec(ctx, query, taskID, userID); err != nil {
		return fmt.Errorf("failed to deactivate delay (task %d, user %d): %w", taskID, userID, err)
	}
	return nil
}

func scanDelay(row pgx.Row) (models.Delay, error) {
	var dl models.Delay
	var restSeconds int64
	err := row.Scan(
		&dl.TaskID, &dl.UserID, &restSeconds, &dl.RestMax,
		&dl.NextAlarmAt, &dl.AlarmCount, &dl.LastAlarmAt,
		&dl.CreatedAt, &dl.UpdatedAt,
	)
	if err != nil {
		return models.Delay{}, err
	}
	dl.RestTime = time.Duration(restSeconds) * time.Second
	return dl, nil
}
