// Package app implements the review service.
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
	Save(ctx context.Context, productKey string, reviews []catalog.Review) error
	FindAll(ctx context.Context, productKey string) ([]catalog.Review, error)
	DeleteAll(ctx context.Context, productKey string) error
}

type reviewServer struct {
	repo    Repository
	address string
	logger  *slog.Logger
}

var _ catalogrpc.ReviewServer = (*reviewServer)(nil)

func NewReviewServer(repo Repository, address string, logger *slog.Logger) *reviewServer {
	return &reviewServer{repo: repo, address: address, logger: logger}
}

func (s *reviewServer) ListReviews(ctx context.Context, r catalogrpc.Request, send func(catalog.Review) error) error {
	reviews, err := s.repo.FindAll(ctx, r.ProductKey)
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "listing reviews", "product_key", r.ProductKey, "count", len(reviews))
	for _, rv := range reviews {
		rv.ServiceAddress = s.address
		if err := send(rv); err != nil {
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
	reviews, err := messaging.DecodePayload[[]catalog.Review](data)
	if err != nil {
		return err
	}
	for i := range reviews {
		if reviews[i].ProductKey == "" {
			reviews[i].ProductKey = key
		}
		if reviews[i].ProductKey != key {
			return fmt.Errorf("%w: review for %q published under key %q", messaging.ErrEventProcessing, reviews[i].ProductKey, key)
		}
		reviews[i].ServiceAddress = ""
	}
	return a.repo.Save(ctx, key, reviews)
}

func (a applier) DeleteAll(ctx context.Context, key string) error {
	return a.repo.DeleteAll(ctx, key)
}
