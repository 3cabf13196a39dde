package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/kafka"
)

const (
	defaultBufferSize    = 10000
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
)

// Publisher writes events to the message bus. *kafka.Producer satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers prediction events and publishes them in batches, either
// when a batch fills or when the flush interval passes. Record never blocks:
// when the buffer is full or the collector is closed the event is dropped
// and counted.
type Collector struct {
	publisher     Publisher
	mu            sync.RWMutex
	closed        bool
	eventCh       chan PredictionEvent
	batchSize     int
	flushInterval time.Duration
	dropped       atomic.Int64
	onDrop        func()
	logger        *slog.Logger
	done          chan struct{}
}

// CollectorOption customises a Collector.
type CollectorOption func(*Collector)

// WithBatching overrides the batch size and flush interval.
func WithBatching(size int, interval time.Duration) CollectorOption {
	return func(c *Collector) {
		if size > 0 {
			c.batchSize = size
		}
		if interval > 0 {
			c.flushInterval = interval
		}
	}
}

// WithDropHook registers fn to run whenever an event is dropped.
func WithDropHook(fn func()) CollectorOption {
	return func(c *Collector) { c.onDrop = fn }
}

// NewCollector creates a Collector. Call Start before recording.
func NewCollector(publisher Publisher, bufferSize int, opts ...CollectorOption) *Collector {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	c := &Collector{
		publisher:     publisher,
		eventCh:       make(chan PredictionEvent, bufferSize),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the publish loop. It stops when ctx is cancelled or Close
// is called, flushing whatever is buffered.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background(), batch)
					return
				}
				batch = append(batch, toKafkaEvent(event))
				if len(batch) >= c.batchSize {
					c.flush(ctx, batch)
					batch = make([]kafka.Event, 0, c.batchSize)
				}
			case <-ticker.C:
				if len(batch) > 0 {
					c.flush(ctx, batch)
					batch = make([]kafka.Event, 0, c.batchSize)
				}
			case <-ctx.Done():
				batch = c.drainRemaining(batch)
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx, batch)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Record implements Recorder.
func (c *Collector) Record(event PredictionEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.drop(event, "collector closed")
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.drop(event, "buffer full")
	}
}

func (c *Collector) drop(event PredictionEvent, reason string) {
	c.dropped.Add(1)
	if c.onDrop != nil {
		c.onDrop()
	}
	c.logger.Warn("analytics event dropped", "event_id", event.ID, "reason", reason)
}

// Dropped returns how many events were discarded.
func (c *Collector) Dropped() int64 { return c.dropped.Load() }

// Close stops accepting events and waits for the final flush. Events
// recorded afterwards are dropped. Close is idempotent.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
		return
	}
	c.logger.Debug("analytics batch published", "events", len(batch))
}

func (c *Collector) drainRemaining(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, toKafkaEvent(event))
		default:
			return batch
		}
	}
}

func toKafkaEvent(event PredictionEvent) kafka.Event {
	return kafka.Event{Key: event.Agreement.String(), Value: event}
}

// String returns the agreement level as text.
func (a Agreement) String() string { return string(a) }
