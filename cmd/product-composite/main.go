package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/catalogrpc"
	"github.com/jcmexdev/product-catalog/internal/pkg/config"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging/brokers"
	"github.com/jcmexdev/product-catalog/internal/pkg/resilience"
	"github.com/jcmexdev/product-catalog/internal/pkg/telemetry"
	"github.com/jcmexdev/product-catalog/internal/product-composite/core/service"
	adapters "github.com/jcmexdev/product-catalog/internal/product-composite/infra/adapters/service"
	"github.com/jcmexdev/product-catalog/internal/product-composite/infra/httpx"
)

const serviceName = "product-composite"

func main() {
	cfg, err := config.Load(os.Getenv("CATALOG_CONFIG"), serviceName)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := telemetry.InitLogger(cfg.Log, serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, cfg.Telemetry, serviceName)
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("product composite stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	registry := resilience.NewRegistry()
	for _, d := range catalog.Domains {
		registry.Register(string(d), cfg.Resilience.For(d), resilience.WithLogger(logger))
	}
	policies, err := service.PoliciesFrom(registry)
	if err != nil {
		return err
	}

	productConn, err := catalogrpc.Dial(cfg.Composite.ProductAddr)
	if err != nil {
		return err
	}
	defer productConn.Close()

	recommendationConn, err := catalogrpc.Dial(cfg.Composite.RecommendationAddr)
	if err != nil {
		return err
	}
	defer recommendationConn.Close()

	reviewConn, err := catalogrpc.Dial(cfg.Composite.ReviewAddr)
	if err != nil {
		return err
	}
	defer reviewConn.Close()

	publisher, err := brokers.NewPublisher(cfg.Messaging)
	if err != nil {
		return err
	}
	defer publisher.Close()

	aggregator := service.NewAggregator(
		adapters.NewGRPCProductService(productConn),
		adapters.NewGRPCRecommendationService(recommendationConn),
		adapters.NewGRPCReviewService(reviewConn),
		policies,
		compositeAddress(cfg.Composite.HTTPAddr),
		logger,
	)
	writer := service.NewWriter(timeoutPublisher{Publisher: publisher, timeout: cfg.Composite.PublishTimeout}, logger)
	handler := httpx.NewHandler(aggregator, writer, registry, logger)

	srv := &http.Server{
		Addr:              cfg.Composite.HTTPAddr,
		Handler:           httpx.NewRouter(handler),
		ReadHeaderTimeout: cfg.Composite.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("product composite running", "addr", srv.Addr, "broker", cfg.Messaging.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// timeoutPublisher bounds every publish by composite.publish_timeout.
type timeoutPublisher struct {
	messaging.Publisher
	timeout time.Duration
}

func (p timeoutPublisher) Publish(ctx context.Context, topic string, ev messaging.Event) error {
	if p.timeout <= 0 {
		return p.Publisher.Publish(ctx, topic, ev)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Publisher.Publish(ctx, topic, ev)
}

func compositeAddress(httpAddr string) string {
	_, port, err := net.SplitHostPort(httpAddr)
	if err != nil {
		port = "0"
	}
	return catalog.ServiceAddress(port)
}

