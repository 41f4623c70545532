// Package kafka consumes task lifecycle events published by the admin
// backend. A schedule edit invalidates the task's current timeout cycle, so
// the idempotency marker is cleared and the next sweep re-evaluates the task
// under its new schedule.
package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"

	"task-timeout-service/internal/db"
	"task-timeout-service/internal/logging"
)

type taskEventStore interface {
	ClearTaskNotified(ctx context.Context, id int64) error
}

type Consumer struct {
	reader *kafka.Reader
	store  taskEventStore
	logger *logging.Logger
}

func NewConsumer(brokers []string, topic, groupID string, store taskEventStore, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, store: store, logger: logger}
}

type taskEvent struct {
	Event  string `json:"event"`
	TaskID int64  `json:"task_id"`
}

// Start blocks reading messages until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Infof("Kafka consumer started")
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.logger.Infof("Kafka consumer stopped")
				return
			}
			c.logger.Errorf("Read message failed: %v", err)
			continue
		}

		var ev taskEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.logger.Errorf("Unmarshal task event failed: %v", err)
			continue
		}
		if ev.TaskID < 1 {
			c.logger.Errorf("Invalid task event: missing task_id")
			continue
		}

		switch ev.Event {
		case "task_updated", "task_rescheduled":
			if err := c.store.ClearTaskNotified(ctx, ev.TaskID); err != nil && !errors.Is(err, db.ErrTaskNotFound) {
				c.logger.Errorf("Failed to clear notified marker for task %d: %v", ev.TaskID, err)
				continue
			}
			c.logger.Infof("Cleared timeout cycle for task %d after %s event", ev.TaskID, ev.Event)
		default:
			c.logger.Debugf("Ignoring task event %q for task %d", ev.Event, ev.TaskID)
		}
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Failed to close Kafka reader: %v", err)
	}
}
