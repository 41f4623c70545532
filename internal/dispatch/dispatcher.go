// Package dispatch fans a task's escalation out to its assignees: one
// delivery attempt per recipient, bookkeeping before delivery, and every
// failure contained here rather than surfaced to the scanner.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-timeout-service/internal/logging"
	"task-timeout-service/internal/models"
)

// ErrNoDestination is returned by a Sender when the recipient never
// registered the channel; such recipients are excluded silently.
var ErrNoDestination = errors.New("recipient has no destination for this channel")

// Sender delivers one composed message to one recipient.
type Sender interface {
	Name() string
	Send(ctx context.Context, rec models.Recipient, msg Message) error
}

type recipientStore interface {
	GetRecipientsByUserIDs(ctx context.Context, userIDs []int64) ([]models.Recipient, error)
}

type auditStore interface {
	CreateTimeoutNotification(ctx context.Context, n models.TimeoutNotification) error
}

type delayGranter interface {
	GrantOrRefresh(ctx context.Context, task models.Task, userID int64, now time.Time) (models.Delay, error)
}

type livePusher interface {
	SendToUser(userID int64, message []byte)
}

// Result aggregates one dispatch fan-out.
type Result struct {
	Sent   int
	Failed int
}

type Dispatcher struct {
	recipients recipientStore
	audit      auditStore
	ledger     delayGranter
	senders    []Sender
	live       livePusher
	logger     *logging.Logger
}

// New constructs a Dispatcher. senders may be empty (misconfigured
// transport), in which case every dispatch degrades to a logged no-op. live
// may be nil.
func New(recipients recipientStore, audit auditStore, granter delayGranter, senders []Sender, live livePusher, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		recipients: recipients,
		audit:      audit,
		ledger:     granter,
		senders:    senders,
		live:       live,
		logger:     logger,
	}
}

// Dispatch notifies every resolvable assignee of the task that its timeout
// was reached, granting a fresh rest allowance per recipient. It never
// returns an error: all failures are contained and counted.
func (d *Dispatcher) Dispatch(ctx context.Context, task models.Task, now time.Time) Result {
	var res Result

	ids := ParseAssignees(task.Users)
	if len(ids) == 0 {
		d.logger.Infof("Task %d has no parseable assignees, nothing to dispatch", task.ID)
		return res
	}
	if len(d.senders) == 0 {
		d.logger.Warnf("No messaging transport configured, dropping dispatch for task %d", task.ID)
		return res
	}

	recipients, err := d.recipients.GetRecipientsByUserIDs(ctx, ids)
	if err != nil {
		d.logger.Errorf("Failed to resolve recipients for task %d: %v", task.ID, err)
		return res
	}
	if len(recipients) == 0 {
		d.logger.Infof("Task %d has no recipients with a registered destination", task.ID)
		return res
	}

	for _, rec := range recipients {
		delay, err := d.ledger.GrantOrRefresh(ctx, task, rec.UserID, now)
		if err != nil {
			d.logger.Errorf("Failed to grant rest for task %d user %d: %v", task.ID, rec.UserID, err)
			res.Failed++
			continue
		}

		msg := buildMessage(task, rec, models.TypeTimeout, delay.LastRest(), now)
		d.record(ctx, task, rec, msg, models.TypeTimeout, now)

		attempted, delivered := d.deliver(ctx, rec, msg)
		switch {
		case delivered:
			res.Sent++
		case attempted:
			res.Failed++
		default:
			// No channel could address this recipient: excluded, not failed.
			d.logger.Debugf("User %d excluded from task %d dispatch: no addressable channel", rec.UserID, task.ID)
		}
	}

	d.logger.Infof("Dispatched task %d: sent=%d failed=%d", task.ID, res.Sent, res.Failed)
	return res
}

// Remind re-pings a single user whose rest window elapsed while the rest is
// still active. Like Dispatch it never propagates errors.
func (d *Dispatcher) Remind(ctx context.Context, task models.Task, delay models.Delay, now time.Time) Result {
	var res Result

	if len(d.senders) == 0 {
		d.logger.Warnf("No messaging transport configured, dropping reminder for task %d user %d", task.ID, delay.UserID)
		return res
	}

	recipients, err := d.recipients.GetRecipientsByUserIDs(ctx, []int64{delay.UserID})
	if err != nil {
		d.logger.Errorf("Failed to resolve recipient %d for task %d reminder: %v", delay.UserID, task.ID, err)
		res.Failed++
		return res
	}
	if len(recipients) == 0 {
		d.logger.Infof("Reminder recipient %d for task %d has no registered destination", delay.UserID, task.ID)
		return res
	}
	rec := recipients[0]

	msg := buildMessage(task, rec, models.TypeTimeoutReminder, delay.LastRest(), now)
	d.record(ctx, task, rec, msg, models.TypeTimeoutReminder, now)

	attempted, delivered := d.deliver(ctx, rec, msg)
	switch {
	case delivered:
		res.Sent++
	case attempted:
		res.Failed++
	}
	return res
}

// record appends the audit row. Bookkeeping happens before the delivery
// attempt, so a failed delivery never rolls it back; an audit failure is
// logged and delivery proceeds anyway.
func (d *Dispatcher) record(ctx context.Context, task models.Task, rec models.Recipient, msg Message, notifType string, now time.Time) {
	n := models.TimeoutNotification{
		TaskID:      task.ID,
		UserID:      rec.UserID,
		Description: msg.Body,
		Type:        notifType,
		CreatedAt:   now,
	}
	if err := d.audit.CreateTimeoutNotification(ctx, n); err != nil {
		d.logger.Errorf("Failed to record audit row for task %d user %d: %v", task.ID, rec.UserID, err)
	}
}

// deliver attempts every configured channel. delivered is true when at least
// one accepted the message; attempted is false when no channel could address
// the recipient at all.
func (d *Dispatcher) deliver(ctx context.Context, rec models.Recipient, msg Message) (attempted, delivered bool) {
	for _, s := range d.senders {
		err := s.Send(ctx, rec, msg)
		if errors.Is(err, ErrNoDestination) {
			continue
		}
		attempted = true
		if err != nil {
			d.logger.Errorf("Delivery via %s failed for user %d: %v", s.Name(), rec.UserID, err)
			continue
		}
		delivered = true
	}

	if d.live != nil {
		d.live.SendToUser(rec.UserID, []byte(fmt.Sprintf("%s\n%s", msg.Title, msg.Body)))
	}
	return attempted, delivered
}
