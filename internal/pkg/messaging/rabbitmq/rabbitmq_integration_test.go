package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging"
)

func runRabbitMQ(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("rabbitmq container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })
	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5672")
	require.NoError(t, err)
	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestRabbitMQRedeliversUntilApplied(t *testing.T) {
	if testing.Short() {
		t.Skip("container test")
	}
	cfg := Config{URL: runRabbitMQ(t)}

	sub, err := NewSubscriber(cfg, discard)
	require.NoError(t, err)
	defer sub.Close()

	var (
		mu       sync.Mutex
		attempts int
		applied  []string
	)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go func() {
		_ = sub.Subscribe(ctx, "reviews", "review-service", func(_ context.Context, ev messaging.Event) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts == 1 {
				return fmt.Errorf("transient")
			}
			applied = append(applied, ev.ID)
			return nil
		})
	}()
	// Queue must exist before the first publish.
	time.Sleep(time.Second)

	pub, err := NewPublisher(cfg)
	require.NoError(t, err)
	defer pub.Close()
	require.NoError(t, pub.Publish(ctx, "reviews", messaging.NewDeleteEvent(catalog.DomainReview, "P1")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) == 1
	}, 20*time.Second, 100*time.Millisecond)
}
