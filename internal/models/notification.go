package models

import "time"

// Notification kinds recorded in the audit log and passed through to clients.
const (
	TypeTimeout         = "timeout"
	TypeTimeoutReminder = "timeout_reminder"
)

// TimeoutNotification is one append-only audit row per notification actually
// composed for a recipient. It is a trail, not a decision input.
type TimeoutNotification struct {
	ID          string    `json:"id"`
	TaskID      int64     `json:"task_id"`
	UserID      int64     `json:"user_id"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
}
