package events

import (
	"context"

	"github.com/smallbiznis/crm/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

// NewPublisher connects to RabbitMQ when RABBITMQ_URL is set and falls back
// to a no-op publisher otherwise.
func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Publisher, error) {
	if cfg.RabbitMQURL == "" {
		log.Info("event publishing disabled")
		return Noop{}, nil
	}

	publisher, err := NewRabbitMQ(cfg.RabbitMQURL, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}
