// Package app implements the recommendation service.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/catalogrpc"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging"
)

type Repository interface {
	Save(ctx context.Context, productKey string, recs []catalog.Recommendation) error
	FindAll(ctx context.Context, productKey string) ([]catalog.Recommendation, error)
	DeleteAll(ctx context.Context, productKey string) error
}

type recommendationServer struct {
	repo    Repository
	address string
	logger  *slog.Logger
}

var _ catalogrpc.RecommendationServer = (*recommendationServer)(nil)

func NewRecommendationServer(repo Repository, address string, logger *slog.Logger) *recommendationServer {
	return &recommendationServer{repo: repo, address: address, logger: logger}
}

// ListRecommendations streams the stored recommendations in id order. A
// product without recommendations yields an empty stream.
func (s *recommendationServer) ListRecommendations(ctx context.Context, r catalogrpc.Request, send func(catalog.Recommendation) error) error {
	recs, err := s.repo.FindAll(ctx, r.ProductKey)
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "listing recommendations", "product_key", r.ProductKey, "count", len(recs))
	for _, rec := range recs {
		rec.ServiceAddress = s.address
		if err := send(rec); err != nil {
			return err
		}
	}
	return nil
}

type applier struct {
	repo Repository
}

func NewApplier(repo Repository) messaging.Applier {
	return applier{repo: repo}
}

func (a applier) Upsert(ctx context.Context, key string, data json.RawMessage) error {
	recs, err := messaging.DecodePayload[[]catalog.Recommendation](data)
	if err != nil {
		return err
	}
	for i := range recs {
		if recs[i].ProductKey == "" {
			recs[i].ProductKey = key
		}
		if recs[i].ProductKey != key {
			return fmt.Errorf("%w: recommendation for %q published under key %q", messaging.ErrEventProcessing, recs[i].ProductKey, key)
		}
		recs[i].ServiceAddress = ""
	}
	return a.repo.Save(ctx, key, recs)
}

func (a applier) DeleteAll(ctx context.Context, key string) error {
	return a.repo.DeleteAll(ctx, key)
}
