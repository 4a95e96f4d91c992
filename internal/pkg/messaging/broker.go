package messaging

import "context"

// Handler applies one event. Returning nil acknowledges it; an error wrapping
// ErrEventProcessing drops it; any other error asks for redelivery.
type Handler func(ctx context.Context, ev Event) error

// Publisher returns once the broker has accepted the event. Failures wrap
// catalog.ErrPublishFailure. There is no local buffering.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event) error
	Close() error
}

// Subscriber delivers the events of topic to h in per-key order and blocks
// until ctx is done. group names the durable consumer position.
type Subscriber interface {
	Subscribe(ctx context.Context, topic, group string, h Handler) error
	Close() error
}
