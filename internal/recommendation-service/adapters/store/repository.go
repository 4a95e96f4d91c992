// Package store persists recommendations in a document store, one group per
// product key.
package store

import (
	"strconv"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/docstore"
	"github.com/jcmexdev/product-catalog/internal/recommendation-service/app"
)

var _ app.Repository = (*docstore.Collection[catalog.Recommendation])(nil)

func NewRepository(s docstore.Store) *docstore.Collection[catalog.Recommendation] {
	return docstore.NewCollection(s,
		func(r catalog.Recommendation) string { return r.ProductKey },
		func(r catalog.Recommendation) string { return strconv.Itoa(r.RecommendationID) },
	)
}
