package relay

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/observability/telemetry"
	"github.com/voltx/rec-hub/internal/ports"
)

type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// Relay moves committed events from the outbox to the broker. Delivery is at
// least once: a message is marked published only after the broker accepted it.
type Relay struct {
	store ports.OutboxStore
	queue ports.MessageQueue
	cfg   Config
	log   *zap.Logger
}

func NewRelay(store ports.OutboxStore, queue ports.MessageQueue, cfg Config, log *zap.Logger) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		store: store,
		queue: queue,
		cfg:   cfg,
		log:   log,
	}
}

// Run relays on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.log.Info("Outbox relay started",
		zap.Duration("interval", r.cfg.Interval),
		zap.Int("batch_size", r.cfg.BatchSize),
	)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Outbox relay stopped")
			return
		case <-ticker.C:
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					r.log.Warn("Outbox relay pass failed", zap.Error(err))
					break
				}
				// Drain full batches without waiting for the next tick.
				if n < r.cfg.BatchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// RelayOnce publishes one batch in outbox order and returns how many messages
// were published. It stops at the first failure so later events are not
// delivered ahead of earlier ones.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	pending, err := r.store.FetchPending(ctx, r.cfg.BatchSize, r.cfg.MaxAttempts)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(pending))
	var publishErr error
	for _, msg := range pending {
		eventType := strings.TrimPrefix(msg.Subject, "rec.events.")
		if err := r.queue.Publish(ctx, msg.Subject, msg.Payload); err != nil {
			publishErr = err
			telemetry.OutboxPublishedTotal.WithLabelValues("error").Inc()
			telemetry.EventsPublishedTotal.WithLabelValues(eventType, "error").Inc()
			if markErr := r.store.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
				r.log.Error("Failed to record outbox failure", zap.Int64("id", msg.ID), zap.Error(markErr))
			}
			if r.cfg.MaxAttempts > 0 && msg.Attempts+1 >= r.cfg.MaxAttempts {
				r.log.Error("Outbox message exhausted its attempts",
					zap.Int64("id", msg.ID),
					zap.String("event_id", msg.EventID),
					zap.String("subject", msg.Subject),
				)
			}
			break
		}
		telemetry.OutboxPublishedTotal.WithLabelValues("ok").Inc()
		telemetry.EventsPublishedTotal.WithLabelValues(eventType, "ok").Inc()
		published = append(published, msg.ID)
	}

	if err := r.store.MarkPublished(ctx, published); err != nil {
		return 0, err
	}
	if len(published) > 0 {
		r.log.Debug("Outbox batch relayed", zap.Int("published", len(published)))
	}
	return len(published), publishErr
}
