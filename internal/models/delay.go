package models

import "time"

// Delay is the per (task, user) rest ledger row. It is created lazily the
// first time a timeout notification reaches the user, reused across cycles,
// and never deleted: it is the durable record of how many rests were used.
type Delay struct {
	TaskID      int64         `json:"task_id"`
	UserID      int64         `json:"user_id"`
	RestTime    time.Duration `json:"rest_time"`
	RestMax     int           `json:"rest_max"`
	NextAlarmAt *time.Time    `json:"next_alarm_at"`
	AlarmCount  int           `json:"alarm_count"`
	LastAlarmAt *time.Time    `json:"last_alarm_at"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Active reports whether this row still blocks escalation for its task.
func (d Delay) Active() bool {
	return d.RestMax > 0
}

// LastRest reports whether exactly one rest remains, which marks the next
// outgoing notification as a final warning.
func (d Delay) LastRest() bool {
	return d.RestMax == 1
}
