package main

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/catalogrpc"
	"github.com/jcmexdev/product-catalog/internal/pkg/config"
	"github.com/jcmexdev/product-catalog/internal/pkg/runner"
	"github.com/jcmexdev/product-catalog/internal/review-service/adapters/sqlite"
	"github.com/jcmexdev/product-catalog/internal/review-service/adapters/store"
	"github.com/jcmexdev/product-catalog/internal/review-service/app"
)

func main() {
	runner.Main("review-service", func(cfg config.Config, logger *slog.Logger, address string) (runner.Downstream, func(), error) {
		repo, ping, cleanup, err := openRepository(cfg.Service)
		if err != nil {
			return runner.Downstream{}, nil, err
		}
		srv := app.NewReviewServer(repo, address, logger)

		return runner.Downstream{
			Domain:   catalog.DomainReview,
			Register: func(s *grpc.Server) { catalogrpc.RegisterReviewServer(s, srv) },
			Applier:  app.NewApplier(repo),
			Ping:     ping,
		}, cleanup, nil
	})
}

func openRepository(cfg config.ServiceConfig) (app.Repository, func(context.Context) error, func(), error) {
	if cfg.Store == config.StoreSQLite {
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return repo, repo.Ping, func() { _ = repo.Close() }, nil
	}
	docs, err := runner.OpenDocStore(cfg, "review")
	if err != nil {
		return nil, nil, nil, err
	}
	return store.NewRepository(docs), docs.Ping, func() { _ = docs.Close() }, nil
}
