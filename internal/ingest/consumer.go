// Package ingest persists every reading published on the broker topic.
//
// The Consumer owns its subscription. Per-message failures (undecodable
// payloads, store errors) are logged and skipped; a lost connection is
// retried at a fixed interval for as long as the consumer runs.
package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/arec-energy/pumpstream/internal/database"
	"github.com/arec-energy/pumpstream/internal/decoder"
	"github.com/arec-energy/pumpstream/internal/models"
	"github.com/arec-energy/pumpstream/internal/transport"
)

var ErrAlreadyStarted = errors.New("consumer already started")

// Config holds the consumer settings.
type Config struct {
	Topic         string
	RetryInterval time.Duration
	// DedupeSize is the number of recently stored messages remembered to
	// skip broker redeliveries.
	DedupeSize    int
	InsertTimeout time.Duration
}

// DefaultConfig returns the consumer defaults.
func DefaultConfig() Config {
	return Config{
		Topic:         "arec/pump",
		RetryInterval: 3 * time.Second,
		DedupeSize:    1024,
		InsertTimeout: 5 * time.Second,
	}
}

// Consumer subscribes to one topic and writes decoded readings to the store.
type Consumer struct {
	subscriber transport.Subscriber
	repo       database.TimeSeriesRepository
	cfg        Config
	logger     logrus.FieldLogger
	metrics    *Metrics
	seen       *lru.Cache
	connected  atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConsumer builds a stopped consumer. metrics may be nil.
func NewConsumer(
	subscriber transport.Subscriber,
	repo database.TimeSeriesRepository,
	cfg Config,
	logger logrus.FieldLogger,
	metrics *Metrics,
) (*Consumer, error) {
	defaults := DefaultConfig()
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaults.RetryInterval
	}
	if cfg.DedupeSize <= 0 {
		cfg.DedupeSize = defaults.DedupeSize
	}
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = defaults.InsertTimeout
	}
	if cfg.Topic == "" {
		cfg.Topic = defaults.Topic
	}
	if metrics == nil {
		var err error
		if metrics, err = NewMetrics(nil); err != nil {
			return nil, err
		}
	}

	seen, err := lru.New(cfg.DedupeSize)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		subscriber: subscriber,
		repo:       repo,
		cfg:        cfg,
		logger:     logger.WithField("component", "ingest"),
		metrics:    metrics,
		seen:       seen,
	}, nil
}

// Start runs the subscription loop in the background until Stop is called
// or ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		c.run(ctx)
	}(c.done)
	return nil
}

// Stop cancels the loop and waits until the subscription is released.
func (c *Consumer) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed once a started consumer has fully stopped.
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Connected reports whether a broker subscription is currently held.
func (c *Consumer) Connected() bool {
	return c.connected.Load()
}

func (c *Consumer) run(ctx context.Context) {
	attempt := 0
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			c.logger.Info("Consumer stopped")
			return
		}

		attempt++
		c.metrics.Reconnects.Inc()
		c.logger.WithFields(logrus.Fields{
			"error":    err,
			"attempt":  attempt,
			"retry_in": c.cfg.RetryInterval.String(),
		}).Warn("Broker unavailable, retrying")

		timer := time.NewTimer(c.cfg.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Info("Consumer stopped")
			return
		case <-timer.C:
		}
	}
}

// consume holds one subscription until the connection drops or ctx ends.
func (c *Consumer) consume(ctx context.Context) error {
	sub, err := c.subscriber.Subscribe(ctx, c.cfg.Topic)
	if err != nil {
		return err
	}
	defer func() {
		c.connected.Store(false)
		c.metrics.Connected.Set(0)
		if err := sub.Close(); err != nil {
			c.logger.WithError(err).Warn("Failed to release subscription")
		}
	}()

	c.connected.Store(true)
	c.metrics.Connected.Set(1)
	c.logger.WithField("topic", c.cfg.Topic).Info("Subscribed to topic")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done():
			c.drain(ctx, sub)
			return sub.Err()
		case msg := <-sub.Messages():
			c.handle(ctx, msg)
		}
	}
}

// drain handles messages the subscription buffered before it dropped.
func (c *Consumer) drain(ctx context.Context, sub transport.Subscription) {
	for {
		select {
		case msg := <-sub.Messages():
			c.handle(ctx, msg)
		default:
			return
		}
	}
}

// redelivery identifies a stored message. Readings sharing a timestamp but
// carrying different payloads are distinct.
type redelivery struct {
	at  int64
	sum [sha256.Size]byte
}

func redeliveryKey(reading models.SensorReading, payload []byte) redelivery {
	return redelivery{at: reading.Time.UnixNano(), sum: sha256.Sum256(payload)}
}

// handle processes one message. It never returns an error: every failure
// is confined to the message that caused it.
func (c *Consumer) handle(ctx context.Context, msg transport.Message) {
	c.metrics.Received.Inc()

	reading, err := decoder.Decode(msg.Payload)
	if err != nil {
		c.metrics.DecodeFailures.Inc()
		c.logger.WithFields(logrus.Fields{
			"topic": msg.Topic,
			"error": err,
		}).Warn("Discarding undecodable message")
		return
	}

	key := redeliveryKey(reading, msg.Payload)
	if c.seen.Contains(key) {
		c.metrics.Duplicates.Inc()
		c.logger.WithField("time", reading.Time).Debug("Skipping redelivered reading")
		return
	}

	if err := c.insert(ctx, reading); err != nil {
		c.metrics.StoreFailures.Inc()
		c.logger.WithFields(logrus.Fields{
			"time":  reading.Time,
			"error": err,
		}).Error("Failed to store reading")
		return
	}

	c.seen.Add(key, struct{}{})
	c.metrics.Stored.Inc()
	c.logger.WithField("time", reading.Time.Format(time.RFC3339Nano)).Debug("Sensor data saved")
}

func (c *Consumer) insert(ctx context.Context, reading models.SensorReading) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.InsertTimeout)
	defer cancel()
	return c.repo.Insert(ctx, reading)
}
