// Package schedule turns a task's configured schedule fields into concrete
// instants. Everything here is a pure function of its inputs and the
// caller-supplied now.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"task-timeout-service/internal/models"
)

// TimeoutAt computes the instant after which the task is overdue for the
// current cycle. ok is false when the task has no timeout configured, when a
// time field does not parse, or when now falls outside the task's period
// window; callers treat all three as "skip", not as errors.
func TimeoutAt(task models.Task, now time.Time) (time.Time, bool) {
	return anchorTimeOfDay(task, task.TimeOut, now)
}

// ClosureAt computes when the task's working window closes. It is used only
// for human-readable remaining-time display in notifications, never for
// gating.
func ClosureAt(task models.Task, now time.Time) (time.Time, bool) {
	return anchorTimeOfDay(task, task.TimeCloture, now)
}

// RestDuration parses the task's rest grant length ("HH:MM" or "HH:MM:SS").
func RestDuration(task models.Task) (time.Duration, error) {
	h, m, s, err := parseTimeOfDay(task.RestTime)
	if err != nil {
		return 0, fmt.Errorf("invalid rest_time %q: %w", task.RestTime, err)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, nil
}

// anchorTimeOfDay anchors a time-of-day field to the current cycle's day, in
// now's location, after checking the period window. For daily tasks that day
// is today; for weekly/monthly/yearly tasks it is the most recent recurrence
// of period_start on or before today, so the deadline stays constant until
// the next occurrence starts a new cycle.
func anchorTimeOfDay(task models.Task, field string, now time.Time) (time.Time, bool) {
	if task.TimeCloture == "" || task.TimeOut == "" {
		return time.Time{}, false
	}
	if !inPeriodWindow(task, now) {
		return time.Time{}, false
	}

	h, m, s, err := parseTimeOfDay(field)
	if err != nil {
		return time.Time{}, false
	}

	anchor, ok := cycleAnchor(task, now)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(anchor.Year(), anchor.Month(), anchor.Day(), h, m, s, 0, now.Location()), true
}

// cycleAnchor returns the midnight of the day the current cycle's deadline
// falls on. Weekly/monthly/yearly recurrence needs period_start to know which
// weekday or day-of-month the task recurs on; without it the task has no
// computable cycle.
func cycleAnchor(task models.Task, now time.Time) (time.Time, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch task.PeriodType {
	case models.PeriodWeekly, models.PeriodMonthly, models.PeriodYearly:
		if task.PeriodStart == nil {
			return time.Time{}, false
		}
	}

	switch task.PeriodType {
	case models.PeriodWeekly:
		back := (int(today.Weekday()) - int(task.PeriodStart.Weekday()) + 7) % 7
		return today.AddDate(0, 0, -back), true
	case models.PeriodMonthly:
		anchor := dayOfMonth(today.Year(), today.Month(), task.PeriodStart.Day(), now.Location())
		if anchor.After(today) {
			anchor = dayOfMonth(today.Year(), today.Month()-1, task.PeriodStart.Day(), now.Location())
		}
		return anchor, true
	case models.PeriodYearly:
		anchor := dayOfMonth(today.Year(), task.PeriodStart.Month(), task.PeriodStart.Day(), now.Location())
		if anchor.After(today) {
			anchor = dayOfMonth(today.Year()-1, task.PeriodStart.Month(), task.PeriodStart.Day(), now.Location())
		}
		return anchor, true
	default:
		// Daily, one-shot and unset all anchor to today.
		return today, true
	}
}

// dayOfMonth builds midnight of the given day, clamped to the month's last
// day so a task starting on the 31st still recurs in shorter months.
func dayOfMonth(year int, month time.Month, day int, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// inPeriodWindow reports whether now lies within [period_start, period_end],
// comparing whole days. A missing bound is open.
func inPeriodWindow(task models.Task, now time.Time) bool {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if task.PeriodStart != nil {
		start := task.PeriodStart
		if day.Before(time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, now.Location())) {
			return false
		}
	}
	if task.PeriodEnd != nil {
		end := task.PeriodEnd
		if day.After(time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, now.Location())) {
			return false
		}
	}
	return true
}

// parseTimeOfDay accepts "HH:MM" and "HH:MM:SS".
func parseTimeOfDay(s string) (hour, minute, second int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("expected HH:MM or HH:MM:SS, got %q", s)
	}

	fields := []*int{&hour, &minute, &second}
	for i, p := range parts {
		v, convErr := strconv.Atoi(p)
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("invalid time component %q: %w", p, convErr)
		}
		*fields[i] = v
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, 0, 0, fmt.Errorf("time of day out of range: %q", s)
	}
	return hour, minute, second, nil
}
