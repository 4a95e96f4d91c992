// Package store keeps reviews in a document store; used for local runs and
// tests when no SQLite file is configured.
package store

import (
	"strconv"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/docstore"
	"github.com/jcmexdev/product-catalog/internal/review-service/app"
)

var _ app.Repository = (*docstore.Collection[catalog.Review])(nil)

func NewRepository(s docstore.Store) *docstore.Collection[catalog.Review] {
	return docstore.NewCollection(s,
		func(r catalog.Review) string { return r.ProductKey },
		func(r catalog.Review) string { return strconv.Itoa(r.ReviewID) },
	)
}
