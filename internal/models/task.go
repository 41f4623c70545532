package models

import "time"

// Recurrence granularities for a task's schedule window.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
	PeriodNone    = "none"
)

// Task is a monitored unit of work with a configured deadline and assignees.
//
// TimeCloture and TimeOut are times of day ("15:04" or "15:04:05"); RestTime
// is a duration of day in the same format. Users carries the raw assignee
// encoding as stored upstream (ideally a JSON integer array, but loose
// numeric text occurs in the wild and is tolerated at the dispatch boundary).
type Task struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Step        string     `json:"step"`
	Status      bool       `json:"status"`
	PeriodStart *time.Time `json:"period_start"`
	PeriodEnd   *time.Time `json:"period_end"`
	PeriodType  string     `json:"period_type"`
	TimeCloture string     `json:"time_cloture"`
	TimeOut     string     `json:"time_out"`
	RestTime    string     `json:"rest_time"`
	RestMax     int        `json:"rest_max"`
	Users       string     `json:"users"`

	// Idempotency marker: set once the first escalation fires for the
	// current cycle. NotifiedDeadline records which deadline instant the
	// notification was for, so a new cycle is self-evident without an
	// external rollover job clearing state.
	TimeoutNotifiedAt *time.Time `json:"timeout_notified_at"`
	NotifiedDeadline  *time.Time `json:"notified_deadline"`
}
