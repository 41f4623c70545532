package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-timeout-service/internal/logging"
	"task-timeout-service/internal/models"
)

type fakeRecipients struct {
	recipients []models.Recipient
	err        error
}

func (f *fakeRecipients) GetRecipientsByUserIDs(_ context.Context, userIDs []int64) ([]models.Recipient, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Recipient
	for _, r := range f.recipients {
		for _, id := range userIDs {
			if r.UserID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

type fakeAudit struct {
	rows []models.TimeoutNotification
	err  error
}

func (f *fakeAudit) CreateTimeoutNotification(_ context.Context, n models.TimeoutNotification) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, n)
	return nil
}

type fakeGranter struct {
	restMax int
	granted []int64
	err     error
}

func (f *fakeGranter) GrantOrRefresh(_ context.Context, task models.Task, userID int64, now time.Time) (models.Delay, error) {
	if f.err != nil {
		return models.Delay{}, f.err
	}
	f.granted = append(f.granted, userID)
	return models.Delay{TaskID: task.ID, UserID: userID, RestMax: f.restMax}, nil
}

type sentMessage struct {
	userID int64
	msg    Message
}

type fakeSender struct {
	name   string
	sent   []sentMessage
	failOn map[int64]error
	noDest map[int64]bool
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, rec models.Recipient, msg Message) error {
	if f.noDest[rec.UserID] {
		return ErrNoDestination
	}
	if err := f.failOn[rec.UserID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{userID: rec.UserID, msg: msg})
	return nil
}

func testTask() models.Task {
	return models.Task{
		ID:      42,
		Name:    "close monthly ledger",
		Step:    "review",
		Status:  true,
		RestMax: 3,
		Users:   "[7,12]",
	}
}

func testNow() time.Time {
	return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func TestDispatch_SendsToEveryResolvableAssignee(t *testing.T) {
	recs := &fakeRecipients{recipients: []models.Recipient{
		{UserID: 7, Name: "Nadia", DeviceToken: "tok-7", Status: "active"},
		{UserID: 12, Name: "Omar", DeviceToken: "tok-12", Status: "active"},
	}}
	audit := &fakeAudit{}
	granter := &fakeGranter{restMax: 3}
	sender := &fakeSender{name: "push"}

	d := New(recs, audit, granter, []Sender{sender}, nil, logging.NewNop())
	res := d.Dispatch(context.Background(), testTask(), testNow())

	assert.Equal(t, Result{Sent: 2, Failed: 0}, res)
	assert.Equal(t, []int64{7, 12}, granter.granted)
	require.Len(t, audit.rows, 2)
	assert.Equal(t, models.TypeTimeout, audit.rows[0].Type)
	assert.Equal(t, int64(42), audit.rows[0].TaskID)

	require.Len(t, sender.sent, 2)
	data := sender.sent[0].msg.Data
	assert.Equal(t, "42", data["task_id"])
	assert.Equal(t, "close monthly ledger", data["task_name"])
	assert.Equal(t, "review", data["task_step"])
	assert.Equal(t, "Nadia", data["user_name"])
	assert.Equal(t, models.TypeTimeout, data["notification_type"])
	assert.Equal(t, "false", data["is_last_time"])
}

func TestDispatch_LastRestAnnotation(t *testing.T) {
	recs := &fakeRecipients{recipients: []models.Recipient{
		{UserID: 7, DeviceToken: "tok-7", Status: "active"},
	}}
	task := testTask()
	task.Users = "[7]"

	t.Run("rest_max 1 marks final warning", func(t *testing.T) {
		sender := &fakeSender{name: "push"}
		d := New(recs, &fakeAudit{}, &fakeGranter{restMax: 1}, []Sender{sender}, nil, logging.NewNop())
		d.Dispatch(context.Background(), task, testNow())

		require.Len(t, sender.sent, 1)
		assert.Equal(t, "true", sender.sent[0].msg.Data["is_last_time"])
		assert.Contains(t, sender.sent[0].msg.Body, "last warning")
	})

	t.Run("rest_max above 1 does not", func(t *testing.T) {
		sender := &fakeSender{name: "push"}
		d := New(recs, &fakeAudit{}, &fakeGranter{restMax: 2}, []Sender{sender}, nil, logging.NewNop())
		d.Dispatch(context.Background(), task, testNow())

		require.Len(t, sender.sent, 1)
		assert.Equal(t, "false", sender.sent[0].msg.Data["is_last_time"])
		assert.NotContains(t, sender.sent[0].msg.Body, "last warning")
	})

	t.Run("rest_max 0 does not", func(t *testing.T) {
		sender := &fakeSender{name: "push"}
		d := New(recs, &fakeAudit{}, &fakeGranter{restMax: 0}, []Sender{sender}, nil, logging.NewNop())
		d.Dispatch(context.Background(), task, testNow())

		require.Len(t, sender.sent, 1)
		assert.Equal(t, "false", sender.sent[0].msg.Data["is_last_time"])
	})
}

func TestDispatch_PerRecipientFailureContainment(t *testing.T) {
	recs := &fakeRecipients{recipients: []models.Recipient{
		{UserID: 7, DeviceToken: "tok-7", Status: "active"},
		{UserID: 12, DeviceToken: "tok-12", Status: "active"},
	}}
	audit := &fakeAudit{}
	sender := &fakeSender{name: "push", failOn: map[int64]error{7: errors.New("provider down")}}

	d := New(recs, audit, &fakeGranter{restMax: 3}, []Sender{sender}, nil, logging.NewNop())
	res := d.Dispatch(context.Background(), testTask(), testNow())

	assert.Equal(t, Result{Sent: 1, Failed: 1}, res)
	// Bookkeeping happened before the delivery attempt for both users.
	assert.Len(t, audit.rows, 2)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(12), sender.sent[0].userID)
}

func TestDispatch_NoTransportIsANoOp(t *testing.T) {
	recs := &fakeRecipients{recipients: []models.Recipient{
		{UserID: 7, DeviceToken: "tok-7", Status: "active"},
	}}
	audit := &fakeAudit{}
	granter := &fakeGranter{restMax: 3}

	d := New(recs, audit, granter, nil, nil, logging.NewNop())
	res := d.Dispatch(context.Background(), testTask(), testNow())

	assert.Equal(t, Result{}, res)
	assert.Empty(t, audit.rows)
	assert.Empty(t, granter.granted)
}

func TestDispatch_EmptyAssigneeListIsANoOp(t *testing.T) {
	task := testTask()
	task.Users = "nobody here"

	sender := &fakeSender{name: "push"}
	d := New(&fakeRecipients{}, &fakeAudit{}, &fakeGranter{restMax: 3}, []Sender{sender}, nil, logging.NewNop())
	res := d.Dispatch(context.Background(), task, testNow())

	assert.Equal(t, Result{}, res)
	assert.Empty(t, sender.sent)
}

func TestDispatch_UnaddressableRecipientExcludedNotFailed(t *testing.T) {
	recs := &fakeRecipients{recipients: []models.Recipient{
		{UserID: 7, DeviceToken: "tok-7", Status: "active"},
	}}
	task := testTask()
	task.Users = "[7]"

	sender := &fakeSender{name: "telegram", noDest: map[int64]bool{7: true}}
	d := New(recs, &fakeAudit{}, &fakeGranter{restMax: 3}, []Sender{sender}, nil, logging.NewNop())
	res := d.Dispatch(context.Background(), task, testNow())

	assert.Equal(t, Result{Sent: 0, Failed: 0}, res)
}

func TestRemind_UsesReminderTypeAndFinalWarning(t *testing.T) {
	recs := &fakeRecipients{recipients: []models.Recipient{
		{UserID: 7, Name: "Nadia", DeviceToken: "tok-7", Status: "active"},
	}}
	audit := &fakeAudit{}
	sender := &fakeSender{name: "push"}

	d := New(recs, audit, &fakeGranter{restMax: 3}, []Sender{sender}, nil, logging.NewNop())
	delay := models.Delay{TaskID: 42, UserID: 7, RestMax: 1}
	res := d.Remind(context.Background(), testTask(), delay, testNow())

	assert.Equal(t, Result{Sent: 1}, res)
	require.Len(t, audit.rows, 1)
	assert.Equal(t, models.TypeTimeoutReminder, audit.rows[0].Type)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, models.TypeTimeoutReminder, sender.sent[0].msg.Data["notification_type"])
	assert.Equal(t, "true", sender.sent[0].msg.Data["is_last_time"])
	assert.Contains(t, sender.sent[0].msg.Body, "still overdue")
}

func TestDispatch_IncludesRemainingTimeBeforeClosure(t *testing.T) {
	recs := &fakeRecipients{recipients: []models.Recipient{
		{UserID: 7, DeviceToken: "tok-7", Status: "active"},
	}}
	task := testTask()
	task.Users = "[7]"
	task.TimeCloture = "18:00"
	task.TimeOut = "08:00"

	sender := &fakeSender{name: "push"}
	d := New(recs, &fakeAudit{}, &fakeGranter{restMax: 3}, []Sender{sender}, nil, logging.NewNop())
	d.Dispatch(context.Background(), task, testNow())

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].msg.Body, "Time remaining before closure: 9h0m0s")
}
