package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

// Applier is the local store side of a consumer. Both operations must be
// idempotent: replaying a CREATE leaves the same state, deleting an absent
// key is not an error.
type Applier interface {
	Upsert(ctx context.Context, key string, data json.RawMessage) error
	DeleteAll(ctx context.Context, key string) error
}

// Consumer applies the events of one domain to that domain's store.
type Consumer struct {
	domain  catalog.Domain
	applier Applier
	logger  *slog.Logger
}

func NewConsumer(domain catalog.Domain, applier Applier, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		domain:  domain,
		applier: applier,
		logger:  logger.With("domain", string(domain)),
	}
}

// OnEvent returns only after the local mutation committed, so the subscriber
// acknowledges strictly after application. Decode failures wrap
// ErrEventProcessing; store failures are returned as-is for redelivery.
func (c *Consumer) OnEvent(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		c.logger.WarnContext(ctx, "rejecting event", "event_id", ev.ID, "error", err)
		return err
	}
	if ev.Domain != "" && ev.Domain != c.domain {
		return fmt.Errorf("%w: %s event delivered to %s consumer", ErrEventProcessing, ev.Domain, c.domain)
	}

	c.logger.InfoContext(ctx, "process message", "event_id", ev.ID, "type", string(ev.Type), "key", ev.Key, "created_at", ev.CreatedAt)

	var err error
	switch ev.Type {
	case EventCreate:
		err = c.applier.Upsert(ctx, ev.Key, ev.Data)
	case EventDelete:
		err = c.applier.DeleteAll(ctx, ev.Key)
	}
	if err != nil {
		return fmt.Errorf("apply %s %s for %q: %w", c.domain, ev.Type, ev.Key, err)
	}

	c.logger.DebugContext(ctx, "message processing complete", "event_id", ev.ID)
	return nil
}

// Handler adapts the consumer to a Subscriber.
func (c *Consumer) Handler() Handler {
	return c.OnEvent
}

// Run subscribes the consumer to its domain topic until ctx is done.
func (c *Consumer) Run(ctx context.Context, sub Subscriber, group string) error {
	c.logger.Info("consumer started", "topic", c.domain.Topic(), "group", group)
	return sub.Subscribe(ctx, c.domain.Topic(), group, c.Handler())
}

// DecodePayload unmarshals event data, marking malformed payloads as
// unprocessable rather than retryable.
func DecodePayload[T any](data json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: decode payload: %v", ErrEventProcessing, err)
	}
	return v, nil
}
