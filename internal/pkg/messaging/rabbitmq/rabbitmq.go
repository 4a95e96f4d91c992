// Package rabbitmq implements the messaging interfaces on amqp091. Each topic
// is a durable topic exchange routed by product key, and each consumer group
// owns one durable queue bound to it.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rabbitmq/amqp091-go"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging"
)

type Config struct {
	URL           string `mapstructure:"url"`
	PrefetchCount int    `mapstructure:"prefetch_count"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("rabbitmq.url is required")
	}
	if c.PrefetchCount < 0 {
		return errors.New("rabbitmq.prefetch_count must be >= 0")
	}
	return nil
}

// QueueName is the durable queue of group on topic.
func QueueName(topic, group string) string {
	return topic + "." + group
}

func declareExchange(ch *amqp091.Channel, topic string) error {
	if err := ch.ExchangeDeclare(topic, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", topic, err)
	}
	return nil
}

type Publisher struct {
	conn *amqp091.Connection

	mu       sync.Mutex
	ch       *amqp091.Channel
	declared map[string]bool
}

var _ messaging.Publisher = (*Publisher)(nil)

func NewPublisher(cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, declared: make(map[string]bool)}, nil
}

// Publish waits for the broker confirm, so a nil return means the event is
// stored by the broker.
func (p *Publisher) Publish(ctx context.Context, topic string, ev messaging.Event) error {
	body, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", catalog.ErrPublishFailure, topic, err)
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		Timestamp:    ev.CreatedAt,
		Headers:      amqp091.Table{},
		Body:         body,
	}
	messaging.InjectTrace(ctx, func(k, v string) { msg.Headers[k] = v })

	p.mu.Lock()
	if !p.declared[topic] {
		if err := declareExchange(p.ch, topic); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("%w: %v", catalog.ErrPublishFailure, err)
		}
		p.declared[topic] = true
	}
	conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, topic, ev.Key, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: rabbitmq %s: %v", catalog.ErrPublishFailure, topic, err)
	}

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: rabbitmq %s: %v", catalog.ErrPublishFailure, topic, err)
	}
	if !acked {
		return fmt.Errorf("%w: rabbitmq %s: broker nacked %s", catalog.ErrPublishFailure, topic, ev.ID)
	}
	return nil
}

func (p *Publisher) Close() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

type Subscriber struct {
	cfg    Config
	logger *slog.Logger
	conn   *amqp091.Connection
}

var _ messaging.Subscriber = (*Subscriber)(nil)

func NewSubscriber(cfg Config, logger *slog.Logger) (*Subscriber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PrefetchCount == 0 {
		cfg.PrefetchCount = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	return &Subscriber{cfg: cfg, logger: logger, conn: conn}, nil
}

// Subscribe consumes with manual acknowledgement on its own channel. With a
// single consumer and prefetch 1 the queue order is preserved.
func (s *Subscriber) Subscribe(ctx context.Context, topic, group string, h messaging.Handler) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(s.cfg.PrefetchCount, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	if err := declareExchange(ch, topic); err != nil {
		return err
	}
	queue := QueueName(topic, group)
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, "#", topic, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue, err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, queue, group, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue %s: %w", queue, err)
	}

	logger := s.logger.With("topic", topic, "group", group)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("rabbitmq delivery channel for %s closed", queue)
			}
			processDelivery(ctx, logger, h, d)
		}
	}
}

func processDelivery(ctx context.Context, logger *slog.Logger, h messaging.Handler, d amqp091.Delivery) {
	ev, err := messaging.UnmarshalEvent(d.Body)
	if err != nil {
		logger.Error("dropping undecodable delivery", "delivery_tag", d.DeliveryTag, "error", err)
		_ = d.Nack(false, false)
		return
	}

	hctx := messaging.ExtractTrace(ctx, headerMap(d.Headers))
	if err := h(hctx, ev); err != nil {
		if errors.Is(err, messaging.ErrEventProcessing) {
			logger.Error("dropping unprocessable event", "event_id", ev.ID, "key", ev.Key, "error", err)
			_ = d.Nack(false, false)
			return
		}
		logger.Warn("event handler failed, requeueing", "event_id", ev.ID, "key", ev.Key, "error", err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func headerMap(t amqp091.Table) map[string]string {
	m := make(map[string]string, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			m[k] = s
		}
	}
	return m
}

func (s *Subscriber) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
