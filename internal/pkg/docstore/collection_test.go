package docstore

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

func recommendations() *Collection[catalog.Recommendation] {
	return NewCollection(NewMemoryStore(),
		func(r catalog.Recommendation) string { return r.ProductKey },
		func(r catalog.Recommendation) string { return strconv.Itoa(r.RecommendationID) },
	)
}

func TestCollectionSaveIsIdempotent(t *testing.T) {
	c := recommendations()
	ctx := context.Background()
	recs := []catalog.Recommendation{
		{ProductKey: "P1", RecommendationID: 2, Author: "b", Rate: 4},
		{ProductKey: "P1", RecommendationID: 1, Author: "a", Rate: 5},
	}

	require.NoError(t, c.Save(ctx, "P1", recs))
	require.NoError(t, c.Save(ctx, "P1", recs))

	got, err := c.FindAll(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].RecommendationID)
	assert.Equal(t, 2, got[1].RecommendationID)

	one, err := c.Find(ctx, "P1", "2")
	require.NoError(t, err)
	assert.Equal(t, "b", one.Author)
}

func TestCollectionRejectsForeignKeys(t *testing.T) {
	err := recommendations().Save(context.Background(), "P1", []catalog.Recommendation{{ProductKey: "P2", RecommendationID: 1}})
	assert.Error(t, err)
}

func TestCollectionFindMissing(t *testing.T) {
	_, err := recommendations().Find(context.Background(), "P1", "1")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}
