// Package scanner runs the periodic timeout sweep: it selects candidate
// tasks, computes their deadlines, honors active rest grants, and drives
// at-most-once escalation per cycle. A secondary sweep re-pings users whose
// rest window elapsed.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-timeout-service/internal/db"
	"task-timeout-service/internal/dispatch"
	"task-timeout-service/internal/logging"
	"task-timeout-service/internal/models"
	"task-timeout-service/internal/schedule"
)

type taskStore interface {
	GetActiveTimeoutTasks(ctx context.Context) ([]models.Task, error)
	GetTaskByID(ctx context.Context, id int64) (models.Task, error)
	MarkTaskNotified(ctx context.Context, id int64, at, deadline time.Time) error
	ClearTaskNotified(ctx context.Context, id int64) error
}

type delayLedger interface {
	HasActiveDelay(ctx context.Context, task models.Task) (bool, error)
	DueReminders(ctx context.Context, now time.Time) ([]models.Delay, error)
	ConsumeRest(ctx context.Context, dl models.Delay, now time.Time) (models.Delay, error)
	RevokeRest(ctx context.Context, dl models.Delay) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, task models.Task, now time.Time) dispatch.Result
	Remind(ctx context.Context, task models.Task, dl models.Delay, now time.Time) dispatch.Result
}

type locker interface {
	AcquireScanLock(ctx context.Context) (release func(), ok bool, err error)
}

// Summary aggregates one sweep invocation.
type Summary struct {
	Considered int
	Notified   int
	Reminded   int
	Skipped    int
	Errors     int
	LockHeld   bool
}

func (s Summary) String() string {
	if s.LockHeld {
		return "skipped: scan lock held by another run"
	}
	return fmt.Sprintf("considered=%d notified=%d reminded=%d skipped=%d errors=%d",
		s.Considered, s.Notified, s.Reminded, s.Skipped, s.Errors)
}

type Scanner struct {
	tasks      taskStore
	ledger     delayLedger
	dispatcher dispatcher
	lock       locker
	logger     *logging.Logger
}

func New(tasks taskStore, ledger delayLedger, disp dispatcher, lock locker, logger *logging.Logger) *Scanner {
	return &Scanner{
		tasks:      tasks,
		ledger:     ledger,
		dispatcher: disp,
		lock:       lock,
		logger:     logger,
	}
}

// Run executes one full sweep against the supplied now. It returns a non-nil
// error only when the sweep itself could not run (lock or candidate query
// failure); anything that goes wrong for a single task is contained, counted
// and logged.
func (s *Scanner) Run(ctx context.Context, now time.Time) (Summary, error) {
	var sum Summary

	release, ok, err := s.lock.AcquireScanLock(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to acquire scan lock: %w", err)
	}
	if !ok {
		s.logger.Warnf("Scan lock held by a concurrent run, skipping sweep")
		sum.LockHeld = true
		return sum, nil
	}
	defer release()

	tasks, err := s.tasks.GetActiveTimeoutTasks(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to load candidate tasks: %w", err)
	}

	for _, task := range tasks {
		sum.Considered++
		switch s.processTask(ctx, task, now) {
		case outcomeNotified:
			sum.Notified++
		case outcomeSkipped:
			sum.Skipped++
		case outcomeError:
			sum.Skipped++
			sum.Errors++
		}
	}

	s.runReminders(ctx, now, &sum)

	s.logger.Infof("Sweep finished: %s", sum.String())
	return sum, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeNotified
	outcomeError
)

// processTask evaluates one task in isolation. Any failure is logged with the
// task identity and must never abort the scan of remaining tasks.
func (s *Scanner) processTask(ctx context.Context, task models.Task, now time.Time) outcome {
	active, err := s.ledger.HasActiveDelay(ctx, task)
	if err != nil {
		s.logger.Errorf("Task %d: failed to check delay ledger: %v", task.ID, err)
		return outcomeError
	}
	if active {
		// Task-wide gate: a single user's unexpired rest holds the
		// whole task and the marker stays untouched.
		s.logger.Infof("Task %d skipped: active delay in progress", task.ID)
		return outcomeSkipped
	}

	deadline, ok := schedule.TimeoutAt(task, now)
	if !ok {
		s.logger.Infof("Task %d skipped: no computable deadline", task.ID)
		return outcomeSkipped
	}

	if now.Before(deadline) {
		return outcomeSkipped
	}

	if alreadyNotified(task, deadline) {
		return outcomeSkipped
	}

	res := s.dispatcher.Dispatch(ctx, task, now)
	if err := s.tasks.MarkTaskNotified(ctx, task.ID, now, deadline); err != nil {
		// Dispatch already happened; the next sweep may re-fire. Surface
		// loudly rather than pretending the task is clean.
		s.logger.Errorf("Task %d: dispatched (sent=%d failed=%d) but marking notified failed: %v",
			task.ID, res.Sent, res.Failed, err)
		return outcomeError
	}

	s.logger.Infof("Task %d notified: deadline=%s sent=%d failed=%d",
		task.ID, deadline.Format(time.RFC3339), res.Sent, res.Failed)
	return outcomeNotified
}

// runReminders re-pings users whose rest window elapsed while a rest is still
// active, burning one rest per ping. The ping that lands on the last rest is
// the final warning; when the count hits zero the cycle marker is cleared so
// the next main sweep escalates the task again instead of waiting for
// rollover.
func (s *Scanner) runReminders(ctx context.Context, now time.Time, sum *Summary) {
	due, err := s.ledger.DueReminders(ctx, now)
	if err != nil {
		s.logger.Errorf("Failed to load due reminders: %v", err)
		sum.Errors++
		return
	}

	for _, dl := range due {
		task, err := s.tasks.GetTaskByID(ctx, dl.TaskID)
		if err != nil {
			if errors.Is(err, db.ErrTaskNotFound) {
				s.logger.Warnf("Reminder for task %d user %d: task is gone, dropping the rest allowance", dl.TaskID, dl.UserID)
				if err := s.ledger.RevokeRest(ctx, dl); err != nil {
					s.logger.Errorf("Failed to drop orphaned rest for task %d user %d: %v", dl.TaskID, dl.UserID, err)
					sum.Errors++
				}
				continue
			}
			s.logger.Errorf("Reminder for task %d user %d: failed to load task: %v", dl.TaskID, dl.UserID, err)
			sum.Errors++
			continue
		}

		updated, err := s.ledger.ConsumeRest(ctx, dl, now)
		if err != nil {
			s.logger.Errorf("Reminder for task %d user %d: failed to consume rest: %v", dl.TaskID, dl.UserID, err)
			sum.Errors++
			continue
		}

		if !updated.Active() {
			// The final warning already went out when the count hit one.
			// Unblock the main sweep for this cycle rather than pinging a
			// task whose allowance is spent.
			if err := s.tasks.ClearTaskNotified(ctx, task.ID); err != nil {
				s.logger.Errorf("Task %d: rests exhausted but clearing the cycle marker failed: %v", task.ID, err)
				sum.Errors++
			} else {
				s.logger.Infof("Task %d user %d: rests exhausted, task re-enters escalation", task.ID, dl.UserID)
			}
			continue
		}

		s.dispatcher.Remind(ctx, task, updated, now)
		sum.Reminded++
	}
}
