package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler processes a single decoded event.
type Handler func(ctx context.Context, event *Event) error

// ErrPermanent marks a handler failure that no retry can fix.
var ErrPermanent = errors.New("permanent handler failure")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
func (e *permanentError) Is(target error) bool {
	return target == ErrPermanent
}

// Permanent wraps err so the consumer dead-letters the message on the first
// failure instead of retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetterPublisher receives messages whose handler failed every attempt.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, msg kafka.Message, lastErr error, consumerGroup string) error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	Topics     []string
	MinBytes   int
	MaxBytes   int
	MaxRetries int
	Backoff    time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 100 * time.Millisecond
	}
	return c
}

// Consumer reads events for a consumer group, retries failing handlers with
// linear backoff and hands exhausted messages to an optional dead-letter
// publisher before committing them.
type Consumer struct {
	reader    MessageReader
	cfg       ConsumerConfig
	handler   Handler
	dlq       DeadLetterPublisher
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewConsumer creates a group consumer subscribed to cfg.Topics.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
	})
	return NewConsumerWithReader(r, cfg, handler, logger)
}

// NewConsumerWithReader creates a consumer around an existing reader.
func NewConsumerWithReader(r MessageReader, cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		cfg:     cfg.withDefaults(),
		handler: handler,
		logger:  logger,
	}
}

// WithDeadLetter routes messages that fail every attempt to dlq.
func (c *Consumer) WithDeadLetter(dlq DeadLetterPublisher) *Consumer {
	c.dlq = dlq
	return c
}

// Start consumes messages until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started",
		slog.Any("topics", c.cfg.Topics),
		slog.String("group", c.cfg.GroupID),
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("consumer stopping", slog.String("group", c.cfg.GroupID))
				return c.Close()
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}
		consumerMessagesReceived.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return c.Close()
			}
			c.logger.Error("message left uncommitted", slog.String("error", err.Error()))
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

// process handles one message. A nil return means the message may be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	ctx = extractTrace(ctx, msg)
	start := time.Now()
	defer func() {
		consumerProcessingDuration.WithLabelValues(msg.Topic, c.cfg.GroupID).Observe(time.Since(start).Seconds())
	}()

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to unmarshal event",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return c.deadLetter(ctx, msg, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		lastErr = c.handler(ctx, event)
		if lastErr == nil {
			consumerMessagesProcessed.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()
			return nil
		}
		if errors.Is(lastErr, ErrPermanent) {
			break
		}
		c.logger.WarnContext(ctx, "handler failed, will retry",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", c.cfg.MaxRetries),
			slog.String("error", lastErr.Error()),
		)
		if attempt < c.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.cfg.Backoff):
			}
		}
	}

	consumerMessagesFailed.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()
	c.logger.ErrorContext(ctx, "handler failed, dead-lettering",
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
		slog.String("topic", msg.Topic),
		slog.Int64("offset", msg.Offset),
		slog.String("error", lastErr.Error()),
	)
	return c.deadLetter(ctx, msg, lastErr)
}

// deadLetter forwards msg to the DLQ if one is configured. Without a DLQ the
// message is dropped so a poison message cannot stall its partition.
func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) error {
	if c.dlq == nil {
		return nil
	}
	if err := c.dlq.Publish(ctx, msg, cause, c.cfg.GroupID); err != nil {
		return fmt.Errorf("dead-letter %s@%d: %w", msg.Topic, msg.Offset, err)
	}
	consumerDLQPublished.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()
	return nil
}

// Close closes the consumer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
