package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/searchlab/tweetindex/pkg/kafka"
	"github.com/searchlab/tweetindex/pkg/logger"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers events in a bounded channel and publishes them in
// batches, either when a batch fills or on every flush tick. Track never
// blocks: when the buffer is full the event is dropped.
type Collector struct {
	publisher Publisher
	cfg       CollectorConfig
	eventCh   chan kafka.Event
	logger    *slog.Logger
	done      chan struct{}

	mu      sync.Mutex
	dropped int64
	sent    int64
}

func NewCollector(publisher Publisher, cfg CollectorConfig) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return &Collector{
		publisher: publisher,
		cfg:       cfg,
		eventCh:   make(chan kafka.Event, cfg.BufferSize),
		logger:    logger.WithComponent("analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. Cancelling ctx publishes what is
// buffered, but the loop keeps accepting events until Close.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", c.cfg.BufferSize,
		"batch_size", c.cfg.BatchSize,
		"flush_interval", c.cfg.FlushInterval,
	)
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	cancelled := ctx.Done()
	batch := make([]kafka.Event, 0, c.cfg.BatchSize)
	publish := func() {
		if ctx.Err() != nil {
			c.final(batch)
		} else {
			c.flush(ctx, batch)
		}
		batch = batch[:0]
	}
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.final(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= c.cfg.BatchSize {
				publish()
			}
		case <-ticker.C:
			publish()
		case <-cancelled:
			// requests still in flight may Track until Close
			cancelled = nil
			publish()
		}
	}
}

// final publishes batch under a deadline of its own, for use once the loop
// context is done.
func (c *Collector) final(batch []kafka.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(ctx, batch)
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
		c.mu.Lock()
		c.dropped += int64(len(batch))
		c.mu.Unlock()
		return
	}
	c.mu.Lock()
	c.sent += int64(len(batch))
	c.mu.Unlock()
	c.logger.Debug("analytics batch published", "events", len(batch))
}

func (c *Collector) Track(key string, event any) {
	select {
	case c.eventCh <- kafka.Event{Key: key, Value: event}:
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		c.logger.Warn("analytics event dropped (buffer full)", "key", key)
	}
}

func (c *Collector) TrackSearch(e SearchEvent) {
	c.Track(string(e.Type), e)
}

func (c *Collector) TrackIndex(e IndexEvent) {
	c.Track(e.Source, e)
}

// Counts reports events published and dropped so far.
func (c *Collector) Counts() (sent, dropped int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent, c.dropped
}

// Close stops accepting events and waits for the final flush. Track must
// not be called after Close.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}
