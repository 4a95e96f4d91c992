// Package store persists products as one document per product key.
package store

import (
	"context"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/docstore"
	"github.com/jcmexdev/product-catalog/internal/product-service/app"
)

const productID = "product"

type Repository struct {
	products *docstore.Collection[catalog.Product]
}

var _ app.Repository = (*Repository)(nil)

func NewRepository(s docstore.Store) *Repository {
	return &Repository{products: docstore.NewCollection(s,
		func(p catalog.Product) string { return p.ProductKey },
		func(catalog.Product) string { return productID },
	)}
}

func (r *Repository) Save(ctx context.Context, p catalog.Product) error {
	return r.products.Save(ctx, p.ProductKey, []catalog.Product{p})
}

func (r *Repository) Find(ctx context.Context, productKey string) (catalog.Product, error) {
	return r.products.Find(ctx, productKey, productID)
}

func (r *Repository) Delete(ctx context.Context, productKey string) error {
	return r.products.DeleteAll(ctx, productKey)
}
