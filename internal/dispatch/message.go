package dispatch

import (
	"fmt"
	"strconv"
	"time"

	"task-timeout-service/internal/models"
	"task-timeout-service/internal/schedule"
)

// Message is a composed notification ready for any transport. Data is opaque
// pass-through metadata for the client app.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

func buildMessage(task models.Task, rec models.Recipient, notifType string, lastRest bool, now time.Time) Message {
	var body string
	switch notifType {
	case models.TypeTimeoutReminder:
		body = fmt.Sprintf("Reminder: task %q is still overdue.", task.Name)
	default:
		body = fmt.Sprintf("Task %q has reached its timeout.", task.Name)
	}

	if closure, ok := schedule.ClosureAt(task, now); ok && closure.After(now) {
		body += fmt.Sprintf(" Time remaining before closure: %s.", closure.Sub(now).Round(time.Minute))
	}
	if lastRest {
		body += " This is the last warning before final escalation."
	}

	return Message{
		Title: fmt.Sprintf("Task timeout: %s", task.Name),
		Body:  body,
		Data: map[string]string{
			"task_id":           strconv.FormatInt(task.ID, 10),
			"task_name":         task.Name,
			"task_step":         task.Step,
			"user_name":         rec.Name,
			"notification_type": notifType,
			"is_last_time":      strconv.FormatBool(lastRest),
		},
	}
}
