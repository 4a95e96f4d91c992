package main

import (
	"log/slog"

	"google.golang.org/grpc"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/catalogrpc"
	"github.com/jcmexdev/product-catalog/internal/pkg/config"
	"github.com/jcmexdev/product-catalog/internal/pkg/runner"
	"github.com/jcmexdev/product-catalog/internal/product-service/adapters/store"
	"github.com/jcmexdev/product-catalog/internal/product-service/app"
)

func main() {
	runner.Main("product-service", func(cfg config.Config, logger *slog.Logger, address string) (runner.Downstream, func(), error) {
		docs, err := runner.OpenDocStore(cfg.Service, "product")
		if err != nil {
			return runner.Downstream{}, nil, err
		}
		repo := store.NewRepository(docs)
		srv := app.NewProductServer(repo, address, logger)

		return runner.Downstream{
			Domain:   catalog.DomainProduct,
			Register: func(s *grpc.Server) { catalogrpc.RegisterProductServer(s, srv) },
			Applier:  app.NewApplier(repo),
			Ping:     docs.Ping,
		}, func() { _ = docs.Close() }, nil
	})
}
