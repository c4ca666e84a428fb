package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/observability/telemetry"
	"github.com/voltx/rec-hub/internal/ports"
	"github.com/voltx/rec-hub/pkg/config"
)

// ErrBrokerUnavailable is returned while the breaker is open.
var ErrBrokerUnavailable = errors.New("queue: broker unavailable")

// BreakerQueue stops hammering a failing broker: after enough failed
// publishes it rejects calls immediately until the breaker timeout passes.
type BreakerQueue struct {
	next ports.MessageQueue
	cb   *gobreaker.CircuitBreaker
}

var _ ports.MessageQueue = (*BreakerQueue)(nil)

func NewBreakerQueue(next ports.MessageQueue, cfg config.CircuitBreakerConfig, log *zap.Logger) *BreakerQueue {
	minRequests := uint32(cfg.MinRequests)
	if minRequests == 0 {
		minRequests = 3
	}
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 0.6
	}

	const name = "broker"
	telemetry.CircuitBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.MaxRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			telemetry.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			log.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &BreakerQueue{next: next, cb: cb}
}

func (q *BreakerQueue) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := q.cb.Execute(func() (interface{}, error) {
		return nil, q.next.Publish(ctx, subject, data)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return err
}

func (q *BreakerQueue) Subscribe(subject string, handler func(data []byte) error) error {
	return q.next.Subscribe(subject, handler)
}

// State exposes the breaker state for health reporting.
func (q *BreakerQueue) State() gobreaker.State {
	return q.cb.State()
}

// Ping forwards to the wrapped queue when it supports health checks.
func (q *BreakerQueue) Ping() error {
	if p, ok := q.next.(interface{ Ping() error }); ok {
		return p.Ping()
	}
	return nil
}

func (q *BreakerQueue) Close() error {
	return q.next.Close()
}
