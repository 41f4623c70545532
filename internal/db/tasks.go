package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"task-timeout-service/internal/models"
)

// Nullable text columns are coalesced so rows with no timeout configured
// still scan into plain strings.
const taskColumns = `
	id, name, COALESCE(step, ''), status, period_start, period_end,
	COALESCE(period_type, 'none'),
	COALESCE(time_cloture, ''), COALESCE(time_out, ''), COALESCE(rest_time, ''),
	rest_max, COALESCE(users, ''),
	timeout_notified_at, notified_deadline`

// GetActiveTimeoutTasks returns every active task that has a timeout
// configured. Eligibility against the idempotency marker is decided by the
// scanner, not here, because a stale marker from a previous cycle must stay
// visible to it.
func (d *DB) GetActiveTimeoutTasks(ctx context.Context) ([]models.Task, error) {
	query := `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE status = true
	  AND time_cloture IS NOT NULL AND time_cloture <> ''
	  AND time_out IS NOT NULL AND time_out <> ''
	ORDER BY id`

	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active timeout tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTaskByID fetches a single task row.
func (d *DB) GetTaskByID(ctx context.Context, id int64) (models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return t, nil
}

// MarkTaskNotified sets the idempotency marker together with the deadline
// instant it covers.
func (d *DB) MarkTaskNotified(ctx context.Context, id int64, at, deadline time.Time) error {
	query := `
	UPDATE tasks
	SET timeout_notified_at = $1, notified_deadline = $2
	WHERE id = $3`

	result, err := d.Pool.Exec(ctx, query, at, deadline, id)
	if err != nil {
		return fmt.Errorf("failed to mark task %d notified: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// ClearTaskNotified resets the marker, used when an upstream schedule edit
// invalidates the current cycle or the rest allowance runs out.
func (d *DB) ClearTaskNotified(ctx context.Context, id int64) error {
	query := `
	UPDATE tasks
	SET timeout_notified_at = NULL, notified_deadline = NULL
	WHERE id = $1`

	result, err := d.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to clear notified marker for task %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (models.Task, error) {
	var t models.Task
	err := row.Scan(
		&t.ID, &t.Name, &t.Step, &t.Status,
		&t.PeriodStart, &t.PeriodEnd, &t.PeriodType,
		&t.TimeCloture, &t.TimeOut, &t.RestTime, &t.RestMax, &t.Users,
		&t.TimeoutNotifiedAt, &t.NotifiedDeadline,
	)
	return t, err
}
