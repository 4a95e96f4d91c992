package runner

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcmexdev/product-catalog/internal/pkg/config"
	"github.com/jcmexdev/product-catalog/internal/pkg/docstore"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging/brokers"
	"github.com/jcmexdev/product-catalog/internal/pkg/telemetry"
)

// Build assembles a downstream service. address is the service address the
// service reports in its responses; cleanup releases its store.
type Build func(cfg config.Config, logger *slog.Logger, address string) (d Downstream, cleanup func(), err error)

// Main loads configuration, sets up logging and tracing, and runs the
// downstream built by build until SIGINT or SIGTERM. It exits the process on
// failure.
func Main(name string, build Build) {
	cfg, err := config.Load(os.Getenv("CATALOG_CONFIG"), name)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := telemetry.InitLogger(cfg.Log, name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, cfg.Telemetry, name)
	if err != nil {
		logger.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	if err := start(ctx, name, cfg, logger, build); err != nil {
		logger.Error("service stopped", "error", err)
		stop()
		os.Exit(1)
	}
}

func start(ctx context.Context, name string, cfg config.Config, logger *slog.Logger, build Build) error {
	lis, err := net.Listen("tcp", cfg.Service.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Service.GRPCAddr, err)
	}

	d, cleanup, err := build(cfg, logger, AddressFor(lis))
	if err != nil {
		_ = lis.Close()
		return err
	}
	defer cleanup()

	sub, err := brokers.NewSubscriber(cfg.Messaging, logger)
	if err != nil {
		return err
	}

	d.Name = name
	d.Config = cfg
	d.Logger = logger
	d.Listener = lis
	d.Subscriber = sub
	return d.Run(ctx)
}

// OpenDocStore returns the document store selected by service.store.
func OpenDocStore(cfg config.ServiceConfig, namespace string) (docstore.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return docstore.NewMemoryStore(), nil
	case config.StoreRedis:
		return docstore.NewRedisStore(cfg.RedisAddr, namespace), nil
	}
	return nil, fmt.Errorf("store %q is not supported by the %s service", cfg.Store, namespace)
}
