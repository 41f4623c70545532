package ledger

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

type deactivateCall struct {
	taskID int64
	userID int64
}

type fakeDelayStore struct {
	active      map[int64]bool
	upserted    []models.Delay
	upsertErr   error
	due         []models.Delay
	consumed    []models.Delay
	deactivated []deactivateCall
}

func (f *fakeDelayStore) HasActiveDelay(_ context.Context, taskID int64) (bool, error) {
	return f.active[taskID], nil
}

func (f *fakeDelayStore) UpsertDelay(_ context.Context, dl models.Delay) (models.Delay, error) {
	if f.upsertErr != nil {
		return models.Delay{}, f.upsertErr
	}
	f.upserted = append(f.upserted, dl)
	return dl, nil
}

func (f *fakeDelayStore) GetDueReminders(_ context.Context, _ time.Time) ([]models.Delay, error) {
	return f.due, nil
}

func (f *fakeDelayStore) ConsumeRest(_ context.Context, taskID, userID int64, now, next time.Time) (models.Delay, error) {
	dl := models.Delay{TaskID: taskID, UserID: userID, NextAlarmAt: &next, LastAlarmAt: &now}
	f.consumed = append(f.consumed, dl)
	return dl, nil
}

func (f *fakeDelayStore) DeactivateDelay(_ context.Context, taskID, userID int64) error {
	f.deactivated = append(f.deactivated, deactivateCall{taskID: taskID, userID: userID})
	return nil
}

func restTask(restTime string, restMax int) models.Task {
	return models.Task{
		ID:          9,
		Name:        "inventory count",
		TimeCloture: "17:00",
		TimeOut:     "18:00",
		RestTime:    restTime,
		RestMax:     restMax,
	}
}

func TestGrantOrRefresh(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("overwrites rest config from task", func(t *testing.T) {
		store := &fakeDelayStore{}
		l := New(store, logging.NewNop())

		dl, err := l.GrantOrRefresh(context.Background(), restTask("01:30", 3), 7, now)
		require.NoError(t, err)

		assert.Equal(t, int64(9), dl.TaskID)
		assert.Equal(t, int64(7), dl.UserID)
		assert.Equal(t, 3, dl.RestMax)
		assert.Equal(t, 90*time.Minute, dl.RestTime)
		require.NotNil(t, dl.NextAlarmAt)
		assert.Equal(t, now.Add(90*time.Minute), *dl.NextAlarmAt)
		assert.Len(t, store.upserted, 1)
	})

	t.Run("unusable rest_time grants no allowance", func(t *testing.T) {
		// An allowance with no scheduled ping could never be burned down,
		// so the grant must not create one.
		store := &fakeDelayStore{}
		l := New(store, logging.NewNop())

		for _, restTime := range []string{"", "whenever", "00:00"} {
			dl, err := l.GrantOrRefresh(context.Background(), restTask(restTime, 2), 7, now)
			require.NoError(t, err)

			assert.Zero(t, dl.RestMax, "rest_time %q", restTime)
			assert.Zero(t, dl.RestTime)
			assert.Nil(t, dl.NextAlarmAt)
		}
	})

	t.Run("store failure propagates", func(t *testing.T) {
		store := &fakeDelayStore{upsertErr: errors.New("db offline")}
		l := New(store, logging.NewNop())

		_, err := l.GrantOrRefresh(context.Background(), restTask("01:00", 3), 7, now)
		assert.Error(t, err)
	})
}

func TestConsumeRest(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := &fakeDelayStore{}
	l := New(store, logging.NewNop())

	dl := models.Delay{TaskID: 9, UserID: 7, RestTime: time.Hour, RestMax: 2}
	updated, err := l.ConsumeRest(context.Background(), dl, now)
	require.NoError(t, err)

	require.NotNil(t, updated.NextAlarmAt)
	assert.Equal(t, now.Add(time.Hour), *updated.NextAlarmAt)
	require.Len(t, store.consumed, 1)
}

func TestRevokeRest(t *testing.T) {
	store := &fakeDelayStore{}
	l := New(store, logging.NewNop())

	err := l.RevokeRest(context.Background(), models.Delay{TaskID: 9, UserID: 7, RestMax: 2})
	require.NoError(t, err)
	require.Len(t, store.deactivated, 1)
	assert.Equal(t, deactivateCall{taskID: 9, userID: 7}, store.deactivated[0])
}

func TestDelayFlags(t *testing.T) {
	assert.True(t, models.Delay{RestMax: 2}.Active())
	assert.False(t, models.Delay{RestMax: 0}.Active())
	assert.True(t, models.Delay{RestMax: 1}.LastRest())
	assert.False(t, models.Delay{RestMax: 2}.LastRest())
	assert.False(t, models.Delay{RestMax: 0}.LastRest())
}
