package main

import (
	"log/slog"

	"google.golang.org/grpc"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/catalogrpc"
	"github.com/jcmexdev/product-catalog/internal/pkg/config"
	"github.com/jcmexdev/product-catalog/internal/pkg/runner"
	"github.com/jcmexdev/product-catalog/internal/recommendation-service/adapters/store"
	"github.com/jcmexdev/product-catalog/internal/recommendation-service/app"
)

func main() {
	runner.Main("recommendation-service", func(cfg config.Config, logger *slog.Logger, address string) (runner.Downstream, func(), error) {
		docs, err := runner.OpenDocStore(cfg.Service, "recommendation")
		if err != nil {
			return runner.Downstream{}, nil, err
		}
		repo := store.NewRepository(docs)
		srv := app.NewRecommendationServer(repo, address, logger)

		return runner.Downstream{
			Domain:   catalog.DomainRecommendation,
			Register: func(s *grpc.Server) { catalogrpc.RegisterRecommendationServer(s, srv) },
			Applier:  app.NewApplier(repo),
			Ping:     docs.Ping,
		}, func() { _ = docs.Close() }, nil
	})
}
