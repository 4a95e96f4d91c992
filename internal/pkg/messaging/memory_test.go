package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

func runSubscriber(t *testing.T, b *Broker, topic, group string, h Handler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Subscribe(ctx, topic, group, h)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestBrokerDeliversInOrder(t *testing.T) {
	b := NewBroker()
	ctx := context.Background()

	create, err := NewCreateEvent(catalog.DomainProduct, "P1", catalog.Product{ProductKey: "P1"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, "products", create))
	require.NoError(t, b.Publish(ctx, "products", NewDeleteEvent(catalog.DomainProduct, "P1")))

	var (
		mu  sync.Mutex
		got []EventType
	)
	runSubscriber(t, b, "products", "product-service", func(_ context.Context, ev Event) error {
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
		return nil
	})

	require.Eventually(t, func() bool { return b.Lag("products", "product-service") == 0 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EventCreate, EventDelete}, got)
}

func TestBrokerRedeliversUntilHandled(t *testing.T) {
	b := NewBroker()
	require.NoError(t, b.Publish(context.Background(), "reviews", NewDeleteEvent(catalog.DomainReview, "P1")))

	var (
		mu       sync.Mutex
		attempts int
	)
	runSubscriber(t, b, "reviews", "review-service", func(context.Context, Event) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("store unavailable")
		}
		return nil
	})

	require.Eventually(t, func() bool { return b.Lag("reviews", "review-service") == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, b.Redeliveries())
}

func TestBrokerDropsUnprocessableEvents(t *testing.T) {
	b := NewBroker()
	require.NoError(t, b.Publish(context.Background(), "reviews", Event{Type: "UPDATE", Key: "P1"}))

	runSubscriber(t, b, "reviews", "review-service", func(context.Context, Event) error {
		return ErrEventProcessing
	})

	require.Eventually(t, func() bool { return b.Lag("reviews", "review-service") == 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, b.Redeliveries())
}

func TestBrokerGroupsAreIndependent(t *testing.T) {
	b := NewBroker()
	require.NoError(t, b.Publish(context.Background(), "products", NewDeleteEvent(catalog.DomainProduct, "P1")))

	runSubscriber(t, b, "products", "a", func(context.Context, Event) error { return nil })

	require.Eventually(t, func() bool { return b.Lag("products", "a") == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, b.Lag("products", "b"))
}

func TestBrokerPublishFailure(t *testing.T) {
	b := NewBroker()
	b.FailPublishes("reviews", errors.New("broker down"))

	err := b.Publish(context.Background(), "reviews", NewDeleteEvent(catalog.DomainReview, "P1"))
	assert.ErrorIs(t, err, catalog.ErrPublishFailure)
	assert.Empty(t, b.Events("reviews"))

	b.FailPublishes("reviews", nil)
	require.NoError(t, b.Publish(context.Background(), "reviews", NewDeleteEvent(catalog.DomainReview, "P1")))
	assert.Len(t, b.Events("reviews"), 1)
}

func TestBrokerSubscribeReturnsOnCancel(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Subscribe(ctx, "products", "g", func(context.Context, Event) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
