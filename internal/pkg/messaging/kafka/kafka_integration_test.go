package kafka

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

func TestKafkaContainerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("container test")
	}
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("docker/container runtime unavailable: %v", r)
		}
	}()

	req := testcontainers.ContainerRequest{
		Image:        "docker.redpanda.com/redpandadata/redpanda:v24.1.8",
		ExposedPorts: []string{"9092/tcp"},
		Cmd:          []string{"redpanda", "start", "--overprovisioned", "--smp", "1", "--memory", "512M", "--reserve-memory", "0M", "--check=false", "--node-id", "0", "--kafka-addr", "0.0.0.0:9092", "--advertise-kafka-addr", "127.0.0.1:9092"},
		WaitingFor:   wait.ForLog("Successfully started Redpanda"),
	}
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("docker/container runtime unavailable: %v", err)
	}
	defer func() { _ = ctr.Terminate(ctx) }()

	host, _ := ctr.Host(ctx)
	port, _ := ctr.MappedPort(ctx, "9092")
	cfg := Config{Brokers: []string{fmt.Sprintf("%s:%s", host, port.Port())}}

	pub, err := NewPublisher(cfg)
	require.NoError(t, err)
	defer pub.Close()

	create, err := messaging.NewCreateEvent(catalog.DomainProduct, "P1", catalog.Product{ProductKey: "P1", Name: "widget"})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, "products", create))
	require.NoError(t, pub.Publish(ctx, "products", messaging.NewDeleteEvent(catalog.DomainProduct, "P1")))

	sub, err := NewSubscriber(cfg, discardLogger())
	require.NoError(t, err)
	defer sub.Close()

	var (
		mu  sync.Mutex
		got []messaging.EventType
	)
	consumeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	go func() {
		_ = sub.Subscribe(consumeCtx, "products", "product-service", func(_ context.Context, ev messaging.Event) error {
			mu.Lock()
			got = append(got, ev.Type)
			mu.Unlock()
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 20*time.Second, 100*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []messaging.EventType{messaging.EventCreate, messaging.EventDelete}, got)
}
