package broker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/zoff-tech/queue-admin/pkg/config"
)

func NewBroker(ctx context.Context, cfg *config.BrokerSettings, logger zerolog.Logger) (MessageBroker, error) {
	switch cfg.Type {
	case "", "none":
		return noopBroker{}, nil
	case "rabbitmq":
		return NewRabbitMqBroker(ctx, cfg, logger)
	case "gcp-pubsub":
		return NewPubSubClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported broker type: %s", cfg.Type)
	}
}
