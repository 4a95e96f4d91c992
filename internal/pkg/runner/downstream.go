// Package runner hosts a downstream service: its gRPC server, its event
// consumer and an optional health endpoint, stopped together on shutdown.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/catalogrpc"
	"github.com/jcmexdev/product-catalog/internal/pkg/config"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging"
)

// Downstream is one domain service process: its gRPC server, its event
// consumer and an optional health endpoint.
type Downstream struct {
	Name       string
	Domain     catalog.Domain
	Config     config.Config
	Logger     *slog.Logger
	Listener   net.Listener
	Register   func(*grpc.Server)
	Applier    messaging.Applier
	Subscriber messaging.Subscriber
	Ping       func(context.Context) error
}

// Run blocks until ctx is done or one of the parts fails.
func (d Downstream) Run(ctx context.Context) error {
	logger := d.Logger.With("service", d.Name)

	srv := catalogrpc.NewServer(logger)
	d.Register(srv)

	var health *http.Server
	if addr := d.Config.Service.HealthAddr; addr != "" {
		health = &http.Server{
			Addr:              addr,
			Handler:           HealthRouter(d.Ping),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	consumer := messaging.NewConsumer(d.Domain, d.Applier, logger)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gRPC server running", "addr", d.Listener.Addr().String())
		if err := srv.Serve(d.Listener); err != nil {
			return fmt.Errorf("serve grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := consumer.Run(gctx, d.Subscriber, d.Config.Service.ConsumerGroup)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consume %s: %w", d.Domain.Topic(), err)
		}
		return nil
	})
	if health != nil {
		g.Go(func() error {
			logger.Info("health endpoint running", "addr", health.Addr)
			if err := health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve health: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		srv.GracefulStop()
		if health != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = health.Shutdown(shutdownCtx)
		}
		return d.Subscriber.Close()
	})
	return g.Wait()
}

// HealthRouter answers GET /health with the result of ping.
func HealthRouter(ping func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "UP", http.StatusOK
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				status, code = "DOWN", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	return r
}

// AddressFor is the service address reported for a listener.
func AddressFor(lis net.Listener) string {
	_, port, err := net.SplitHostPort(lis.Addr().String())
	if err != nil {
		port = "0"
	}
	return catalog.ServiceAddress(port)
}
