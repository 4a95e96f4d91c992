package service

import (
	"context"
	"iter"
	"time"

	"google.golang.org/grpc"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/catalogrpc"
	"github.com/jcmexdev/product-catalog/internal/product-composite/core/domain/entity"
	"github.com/jcmexdev/product-catalog/internal/product-composite/core/ports"
)

var (
	_ ports.ProductReader                         = (*GRPCProductService)(nil)
	_ ports.RecordFetcher[catalog.Recommendation] = (*GRPCRecommendationService)(nil)
	_ ports.RecordFetcher[catalog.Review]         = (*GRPCReviewService)(nil)
)

// GRPCProductService reads products from the product service.
type GRPCProductService struct {
	client *catalogrpc.ProductClient
}

func NewGRPCProductService(cc grpc.ClientConnInterface) *GRPCProductService {
	return &GRPCProductService{client: catalogrpc.NewProductClient(cc)}
}

func (s *GRPCProductService) Get(ctx context.Context, productKey string, opts entity.ReadOptions) (catalog.Product, error) {
	return s.client.GetProduct(ctx, catalogrpc.Request{
		ProductKey:   productKey,
		Delay:        time.Duration(opts.DelaySeconds) * time.Second,
		FaultPercent: opts.FaultPercent,
	})
}

type GRPCRecommendationService struct {
	client *catalogrpc.RecommendationClient
}

func NewGRPCRecommendationService(cc grpc.ClientConnInterface) *GRPCRecommendationService {
	return &GRPCRecommendationService{client: catalogrpc.NewRecommendationClient(cc)}
}

func (s *GRPCRecommendationService) Fetch(ctx context.Context, productKey string) iter.Seq2[catalog.Recommendation, error] {
	return s.client.ListRecommendations(ctx, catalogrpc.Request{ProductKey: productKey})
}

type GRPCReviewService struct {
	client *catalogrpc.ReviewClient
}

func NewGRPCReviewService(cc grpc.ClientConnInterface) *GRPCReviewService {
	return &GRPCReviewService{client: catalogrpc.NewReviewClient(cc)}
}

func (s *GRPCReviewService) Fetch(ctx context.Context, productKey string) iter.Seq2[catalog.Review, error] {
	return s.client.ListReviews(ctx, catalogrpc.Request{ProductKey: productKey})
}
