package ports

import (
	"context"
	"iter"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging"
	"github.com/jcmexdev/product-catalog/internal/pkg/resilience"
	"github.com/jcmexdev/product-catalog/internal/product-composite/core/domain/entity"
)

// ProductReader fetches the mandatory core attributes of a product.
type ProductReader interface {
	Get(ctx context.Context, productKey string, opts entity.ReadOptions) (catalog.Product, error)
}

// RecordFetcher yields the records a downstream domain holds for a product.
// The sequence is lazy; stopping iteration cancels the underlying call.
type RecordFetcher[T any] interface {
	Fetch(ctx context.Context, productKey string) iter.Seq2[T, error]
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, ev messaging.Event) error
}

// ProductComposer is the read side used by the HTTP layer.
type ProductComposer interface {
	ComposeProduct(ctx context.Context, productKey string, opts entity.ReadOptions) (entity.ProductAggregate, error)
}

// ProductWriter is the write side used by the HTTP layer.
type ProductWriter interface {
	CreateProduct(ctx context.Context, agg entity.ProductAggregate) error
	DeleteProduct(ctx context.Context, productKey string) error
}

type ResilienceReporter interface {
	Snapshots() []resilience.Snapshot
}
