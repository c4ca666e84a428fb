package queue

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/ports"
	"github.com/voltx/rec-hub/pkg/config"
)

// New connects to the broker selected by cfg.Events.Broker. It returns a nil
// queue for "none".
func New(cfg *config.Config, log *zap.Logger) (ports.MessageQueue, error) {
	switch cfg.Events.Broker {
	case "nats":
		return NewNATSQueue(cfg.NATS, log)
	case "rabbitmq":
		return NewRabbitMQQueue(cfg.RabbitMQ, log)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Events.Broker)
	}
}
