package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

// Broker is an in-process, single-partition broker: each topic is an
// append-only log and each group keeps its own committed offset. An event is
// redelivered until its handler succeeds, so ordering within a topic is
// strict. Run at most one subscriber per (topic, group).
type Broker struct {
	mu           sync.Mutex
	topics       map[string]*memTopic
	publishErr   map[string]error
	closed       bool
	redelivery   time.Duration
	logger       *slog.Logger
	redeliveries int
}

type memTopic struct {
	events  []Event
	offsets map[string]int
	notify  chan struct{}
}

var (
	_ Publisher  = (*Broker)(nil)
	_ Subscriber = (*Broker)(nil)
)

func NewBroker() *Broker {
	return &Broker{
		topics:     make(map[string]*memTopic),
		publishErr: make(map[string]error),
		redelivery: 10 * time.Millisecond,
		logger:     slog.Default(),
	}
}

func (b *Broker) topicLocked(name string) *memTopic {
	t, ok := b.topics[name]
	if !ok {
		t = &memTopic{offsets: make(map[string]int), notify: make(chan struct{})}
		b.topics[name] = t
	}
	return t
}

// FailPublishes makes every Publish to topic fail with err until cleared
// with a nil err.
func (b *Broker) FailPublishes(topic string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.publishErr, topic)
		return
	}
	b.publishErr[topic] = err
}

func (b *Broker) Publish(ctx context.Context, topic string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", catalog.ErrPublishFailure, topic, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("%w: %s: broker closed", catalog.ErrPublishFailure, topic)
	}
	if err := b.publishErr[topic]; err != nil {
		return fmt.Errorf("%w: %s: %v", catalog.ErrPublishFailure, topic, err)
	}
	t := b.topicLocked(topic)
	t.events = append(t.events, ev)
	close(t.notify)
	t.notify = make(chan struct{})
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, topic, group string, h Handler) error {
	logger := b.logger.With("topic", topic, "group", group)
	for {
		ev, offset, wait, err := b.next(topic, group)
		if err != nil {
			return err
		}
		if wait != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-wait:
				continue
			}
		}

		herr := h(ctx, ev)
		switch {
		case herr == nil:
			b.commit(topic, group, offset)
		case errors.Is(herr, ErrEventProcessing):
			logger.Error("dropping unprocessable event", "event_id", ev.ID, "key", ev.Key, "error", herr)
			b.commit(topic, group, offset)
		default:
			logger.Warn("event handler failed, redelivering", "event_id", ev.ID, "key", ev.Key, "error", herr)
			b.mu.Lock()
			b.redeliveries++
			b.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.redelivery):
			}
		}
	}
}

func (b *Broker) next(topic, group string) (Event, int, <-chan struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Event{}, 0, nil, errors.New("memory broker closed")
	}
	t := b.topicLocked(topic)
	off := t.offsets[group]
	if off >= len(t.events) {
		return Event{}, 0, t.notify, nil
	}
	return t.events[off], off, nil, nil
}

func (b *Broker) commit(topic, group string, offset int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.topicLocked(topic)
	if t.offsets[group] == offset {
		t.offsets[group] = offset + 1
	}
}

// Lag is the number of events in topic that group has not yet committed.
func (b *Broker) Lag(topic, group string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.topicLocked(topic)
	return len(t.events) - t.offsets[group]
}

// Events returns a copy of everything published to topic.
func (b *Broker) Events(topic string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.topicLocked(topic)
	return append([]Event(nil), t.events...)
}

func (b *Broker) Redeliveries() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.redeliveries
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, t := range b.topics {
		close(t.notify)
		t.notify = make(chan struct{})
	}
	return nil
}
