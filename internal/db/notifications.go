package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"task-timeout-service/internal/models"
)

// CreateTimeoutNotification appends one audit row. A missing ID is generated.
func (d *DB) CreateTimeoutNotification(ctx context.Context, n models.TimeoutNotification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	query := `
	INSERT INTO timeout_notifications (id, task_id, user_id, description, type, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := d.Pool.Exec(ctx, query, n.ID, n.TaskID, n.UserID, n.Description, n.Type, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create timeout notification: %w", err)
	}
	return nil
}

// GetTimeoutNotifications pages through the audit log, newest first.
func (d *DB) GetTimeoutNotifications(ctx context.Context, limit, offset int) ([]models.TimeoutNotification, error) {
	query := `
	SELECT id, task_id, user_id, description, type, created_at
	FROM timeout_notifications
	ORDER BY created_at DESC
	LIMIT $1 OFFSET $2`

	rows, err := d.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get timeout notifications: %w", err)
	}
	defer rows.Close()

	var list []models.TimeoutNotification
	for rows.Next() {
		var n models.TimeoutNotification
		if err := rows.Scan(&n.ID, &n.TaskID, &n.UserID, &n.Description, &n.Type, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan timeout notification: %w", err)
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// GetTimeoutNotificationsByTaskID returns the audit trail of one task.
func (d *DB) GetTimeoutNotificationsByTaskID(ctx context.Context, taskID int64) ([]models.TimeoutNotification, error) {
	query := `
	SELECT id, task_id, user_id, description, type, created_at
	FROM timeout_notifications
	WHERE task_id = $1
	ORDER BY created_at DESC`

	rows, err := d.Pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get timeout notifications for task %d: %w", taskID, err)
	}
	defer rows.Close()

	var list []models.TimeoutNotification
	for rows.Next() {
		var n models.TimeoutNotification
		if err := rows.Scan(&n.ID, &n.TaskID, &n.UserID, &n.Description, &n.Type, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan timeout notification: %w", err)
		}
		list = append(list, n)
	}
	return list, rows.Err()
}
