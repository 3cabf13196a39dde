// Package kafka carries prediction analytics events over segmentio/kafka-go.
// The producer serialises events as JSON; the consumer hands raw messages to
// a MessageHandler and commits them once handled.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/config"
)

// ErrMalformed marks a message that can never be handled. The consumer
// commits such messages instead of leaving them for redelivery.
var ErrMalformed = errors.New("malformed message")

// Outcome labels what the consumer did with one message.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

const (
	minFetchBackoff = 100 * time.Millisecond
	maxFetchBackoff = 5 * time.Second
)

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// ConsumerStats counts messages by outcome since the consumer started.
type ConsumerStats struct {
	Processed int64 `json:"processed"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
	Lag       int64 `json:"lag"`
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithOutcomeHook calls fn once per fetched message with what happened to it.
func WithOutcomeHook(fn func(Outcome)) ConsumerOption {
	return func(c *Consumer) { c.onOutcome = fn }
}

// Consumer reads one topic as part of a consumer group.
type Consumer struct {
	reader    *kafka.Reader
	handler   MessageHandler
	onOutcome func(Outcome)
	logger    *slog.Logger

	processed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

// NewConsumer creates a Consumer for topic. Nothing is fetched until Start.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1,
			MaxBytes:    1e6,
			MaxWait:     500 * time.Millisecond,
			StartOffset: kafka.FirstOffset,
		}),
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start fetches and handles messages until ctx is cancelled. Handler errors
// wrapping ErrMalformed are committed and skipped; any other handler error
// leaves the message uncommitted so the group redelivers it after a restart.
// Consecutive fetch errors back off exponentially.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	backoff := minFetchBackoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxFetchBackoff)
			continue
		}
		backoff = minFetchBackoff

		outcome := c.handle(ctx, msg)
		c.record(outcome)
		if outcome == OutcomeFailed {
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) Outcome {
	err := c.handler(ctx, msg.Key, msg.Value)
	switch {
	case err == nil:
		return OutcomeProcessed
	case errors.Is(err, ErrMalformed):
		c.logger.Warn("skipping malformed message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return OutcomeSkipped
	default:
		c.logger.Error("failed to process message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return OutcomeFailed
	}
}

func (c *Consumer) record(o Outcome) {
	switch o {
	case OutcomeProcessed:
		c.processed.Add(1)
	case OutcomeSkipped:
		c.skipped.Add(1)
	case OutcomeFailed:
		c.failed.Add(1)
	}
	if c.onOutcome != nil {
		c.onOutcome(o)
	}
}

// Stats returns per-outcome counts and the reader's last known lag.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Processed: c.processed.Load(),
		Skipped:   c.skipped.Load(),
		Failed:    c.failed.Load(),
		Lag:       c.reader.Stats().Lag,
	}
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T. Decoding failures wrap
// ErrMalformed.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w: %w", ErrMalformed, err)
	}
	return result, nil
}
