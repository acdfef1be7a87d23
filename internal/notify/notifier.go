// Package notify delivers run lifecycle events to a webhook destination.
//
// Events go out as CloudEvents, buffered in memory and delivered by a single
// background worker so supervision never blocks on a slow destination. When
// no destination is configured the Nop publisher stands in.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"sizerbatch/internal/observability"
	"sizerbatch/pkg/backoff"
	"sizerbatch/pkg/cloudevent"
)

// Event types emitted during a run.
const (
	EventJobSucceeded = "sizer.job.succeeded"
	EventJobRetried   = "sizer.job.retried"
	EventJobFailed    = "sizer.job.failed"
	EventRunCompleted = "sizer.run.completed"
)

// Publisher accepts lifecycle events for async delivery.
type Publisher interface {
	Publish(eventType, subject string, data map[string]any)
}

// Nop discards all events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(eventType, subject string, data map[string]any) {}

// Config holds configuration for the webhook notifier.
type Config struct {
	URL         string        // destination, required
	SigningKey  string        // HMAC key, empty disables signing
	Source      string        // CloudEvent source (default "sizerbatch")
	BufferSize  int           // pending events buffer (default 1000)
	MaxRetries  int           // delivery attempts per event (default 3)
	HTTPTimeout time.Duration // per-request timeout (default 10s)
}

func (c Config) withDefaults() Config {
	if c.Source == "" {
		c.Source = "sizerbatch"
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	return c
}

// Stats holds notifier statistics.
type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
}

// Webhook is a buffered async webhook notifier.
type Webhook struct {
	queue   chan *cloudevent.CloudEvent
	sender  *cloudevent.Sender
	config  Config
	logger  *slog.Logger
	metrics *observability.Metrics

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// NewWebhook creates a webhook notifier and starts its delivery worker.
func NewWebhook(cfg Config, metrics *observability.Metrics) *Webhook {
	cfg = cfg.withDefaults()

	w := &Webhook{
		queue:    make(chan *cloudevent.CloudEvent, cfg.BufferSize),
		sender:   cloudevent.NewSender(cfg.HTTPTimeout),
		config:   cfg,
		logger:   slog.With("component", "notifier"),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.worker()

	w.logger.Info("Notifier started", "destination", cfg.URL, "buffer", cfg.BufferSize)
	return w
}

// Publish queues an event for async delivery. Non-blocking; events are
// dropped with a warning when the buffer is full.
func (w *Webhook) Publish(eventType, subject string, data map[string]any) {
	if w.closed.Load() {
		return
	}

	event := cloudevent.New(eventType, w.config.Source, subject, data)
	select {
	case w.queue <- event:
	default:
		w.dropped.Add(1)
		if w.metrics != nil {
			w.metrics.RecordNotifierDropped(context.Background())
		}
		w.logger.Warn("Event dropped, buffer full", "type", eventType, "subject", subject)
	}
}

// Stats returns current notifier statistics.
func (w *Webhook) Stats() Stats {
	return Stats{
		Delivered: w.delivered.Load(),
		Failed:    w.failed.Load(),
		Dropped:   w.dropped.Load(),
	}
}

// Close shuts down the notifier, attempting to deliver queued events.
// The context deadline controls how long to wait for drain.
func (w *Webhook) Close(ctx context.Context) error {
	if w.closed.Swap(true) {
		return nil // already closed
	}

	close(w.shutdown)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Notifier shutdown complete",
			"delivered", w.delivered.Load(),
			"failed", w.failed.Load(),
			"dropped", w.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		w.logger.Warn("Notifier shutdown timed out", "remaining", len(w.queue))
		return ctx.Err()
	}
}

// worker delivers events from the queue until shutdown, then drains.
func (w *Webhook) worker() {
	defer w.wg.Done()

	for {
		select {
		case <-w.shutdown:
			for {
				select {
				case event := <-w.queue:
					w.deliver(event)
				default:
					return
				}
			}
		case event := <-w.queue:
			w.deliver(event)
		}
	}
}

// deliver attempts delivery with bounded retry. Client errors (4xx) are not
// retried; the destination has rejected the event for good.
func (w *Webhook) deliver(event *cloudevent.CloudEvent) {
	var lastErr error
	for attempt := 1; attempt <= w.config.MaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), w.config.HTTPTimeout)
		err := w.sender.Send(ctx, w.config.URL, event, w.config.SigningKey)
		cancel()

		if err == nil {
			w.delivered.Add(1)
			if w.metrics != nil {
				w.metrics.RecordNotifierDelivered(context.Background())
			}
			return
		}

		lastErr = err
		if cloudevent.IsClientError(err) {
			break
		}
		if attempt < w.config.MaxRetries {
			time.Sleep(backoff.Exponential(attempt, &backoff.Config{
				Initial: 100 * time.Millisecond,
				Max:     2 * time.Second,
			}))
		}
	}

	w.failed.Add(1)
	if w.metrics != nil {
		w.metrics.RecordNotifierFailed(context.Background())
	}
	w.logger.Warn("Event delivery failed", "type", event.Type, "subject", event.Subject, "error", lastErr)
}
