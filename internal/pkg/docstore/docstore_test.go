package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "P1", "1")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	docs, err := s.List(ctx, "P1")
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, s.Put(ctx, "P1", "10", []byte(`{"id":10}`)))
	require.NoError(t, s.Put(ctx, "P1", "2", []byte(`{"id":2}`)))
	require.NoError(t, s.Put(ctx, "P1", "2", []byte(`{"id":2,"v":2}`)))
	require.NoError(t, s.Put(ctx, "P2", "1", []byte(`{"id":1}`)))

	got, err := s.Get(ctx, "P1", "2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":2,"v":2}`, string(got))

	docs, err = s.List(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.JSONEq(t, `{"id":2,"v":2}`, string(docs[0]))
	assert.JSONEq(t, `{"id":10}`, string(docs[1]))

	require.NoError(t, s.DeleteAll(ctx, "P1"))
	require.NoError(t, s.DeleteAll(ctx, "P1"))
	docs, err = s.List(ctx, "P1")
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = s.List(ctx, "P2")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.NoError(t, s.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesDocuments(t *testing.T) {
	s := NewMemoryStore()
	doc := []byte(`{"id":1}`)
	require.NoError(t, s.Put(context.Background(), "P1", "1", doc))
	doc[2] = 'X'

	got, err := s.Get(context.Background(), "P1", "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(got))
}

func TestSortIDs(t *testing.T) {
	ids := []string{"10", "2", "b", "1", "a"}
	sortIDs(ids)
	assert.Equal(t, []string{"1", "2", "10", "a", "b"}, ids)
}
