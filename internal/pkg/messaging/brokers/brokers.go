// Package brokers selects the messaging implementation named in config.
package brokers

import (
	"fmt"
	"log/slog"

	"github.com/jcmexdev/product-catalog/internal/pkg/messaging"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging/kafka"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging/rabbitmq"
)

const (
	Kafka    = "kafka"
	RabbitMQ = "rabbitmq"
)

type Config struct {
	Type     string          `mapstructure:"type"`
	Kafka    kafka.Config    `mapstructure:"kafka"`
	RabbitMQ rabbitmq.Config `mapstructure:"rabbitmq"`
}

func (c Config) Validate() error {
	switch c.Type {
	case Kafka:
		return c.Kafka.Validate()
	case RabbitMQ:
		return c.RabbitMQ.Validate()
	}
	return fmt.Errorf("unsupported broker type %q, expected %s or %s", c.Type, Kafka, RabbitMQ)
}

func NewPublisher(cfg Config) (messaging.Publisher, error) {
	switch cfg.Type {
	case Kafka:
		return kafka.NewPublisher(cfg.Kafka)
	case RabbitMQ:
		return rabbitmq.NewPublisher(cfg.RabbitMQ)
	}
	return nil, cfg.Validate()
}

func NewSubscriber(cfg Config, logger *slog.Logger) (messaging.Subscriber, error) {
	switch cfg.Type {
	case Kafka:
		return kafka.NewSubscriber(cfg.Kafka, logger)
	case RabbitMQ:
		return rabbitmq.NewSubscriber(cfg.RabbitMQ, logger)
	}
	return nil, cfg.Validate()
}
