package app_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/catalogrpc"
	"github.com/jcmexdev/product-catalog/internal/pkg/docstore"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging"
	"github.com/jcmexdev/product-catalog/internal/review-service/adapters/sqlite"
	"github.com/jcmexdev/product-catalog/internal/review-service/adapters/store"
	"github.com/jcmexdev/product-catalog/internal/review-service/app"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func repositories(t *testing.T) map[string]app.Repository {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return map[string]app.Repository{
		"sqlite": db,
		"memory": store.NewRepository(docstore.NewMemoryStore()),
	}
}

func TestReviewLifecycle(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			srv := app.NewReviewServer(repo, "review/10.0.0.3:7003", discard)
			consumer := messaging.NewConsumer(catalog.DomainReview, app.NewApplier(repo), discard)
			ctx := context.Background()

			create, err := messaging.NewCreateEvent(catalog.DomainReview, "P1", []catalog.Review{
				{ReviewID: 1, Author: "ann", Subject: "s1", Content: "c1"},
				{ReviewID: 2, Author: "bob", Subject: "s2", Content: "c2"},
			})
			require.NoError(t, err)
			require.NoError(t, consumer.OnEvent(ctx, create))
			require.NoError(t, consumer.OnEvent(ctx, create))

			var got []catalog.Review
			require.NoError(t, srv.ListReviews(ctx, catalogrpc.Request{ProductKey: "P1"}, func(r catalog.Review) error {
				got = append(got, r)
				return nil
			}))
			require.Len(t, got, 2)
			assert.Equal(t, "s1", got[0].Subject)
			assert.Equal(t, "review/10.0.0.3:7003", got[0].ServiceAddress)

			del := messaging.NewDeleteEvent(catalog.DomainReview, "P1")
			require.NoError(t, consumer.OnEvent(ctx, del))
			require.NoError(t, consumer.OnEvent(ctx, del))

			got = nil
			require.NoError(t, srv.ListReviews(ctx, catalogrpc.Request{ProductKey: "P1"}, func(r catalog.Review) error {
				got = append(got, r)
				return nil
			}))
			assert.Empty(t, got)
		})
	}
}

func TestUpsertRejectsMalformedPayload(t *testing.T) {
	applier := app.NewApplier(store.NewRepository(docstore.NewMemoryStore()))
	err := applier.Upsert(context.Background(), "P1", json.RawMessage(`{"reviewId":1}`))
	assert.ErrorIs(t, err, messaging.ErrEventProcessing)
}
