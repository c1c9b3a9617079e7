package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vitalis-health/obesity-risk/pkg/common/logger"
	"github.com/vitalis-health/obesity-risk/pkg/common/models"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader       messageReader
	retryBackoff time.Duration
	maxBackoff   time.Duration
}

type EventHandler func(ctx context.Context, event models.Event) error

func NewConsumer(brokers []string, topic string, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: reader, retryBackoff: time.Second, maxBackoff: 30 * time.Second}
}

// Consume hands every event to handler. A failed event is retried in place
// with backoff until the handler succeeds or ctx ends; later messages are not
// fetched meanwhile, since committing them would also commit the failed one.
// Undecodable messages are committed and dropped.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return err
			}
			logger.Log.WithError(err).Error("Failed to fetch message")
			continue
		}

		var event models.Event
		if err := json.Unmarshal(message.Value, &event); err != nil {
			logger.Log.WithError(err).Error("Failed to unmarshal event")
			c.reader.CommitMessages(ctx, message)
			continue
		}

		if err := c.handle(ctx, event, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, message); err != nil {
			logger.Log.WithError(err).Error("Failed to commit message")
		}
	}
}

// handle runs handler until it succeeds. It only fails when ctx ends.
func (c *Consumer) handle(ctx context.Context, event models.Event, handler EventHandler) error {
	backoff := c.retryBackoff
	for attempt := 1; ; attempt++ {
		err := handler(ctx, event)
		if err == nil {
			return nil
		}
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id": event.ID,
			"attempt":  attempt,
			"backoff":  backoff.String(),
		}).Error("Failed to process event")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if c.maxBackoff > 0 && backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
