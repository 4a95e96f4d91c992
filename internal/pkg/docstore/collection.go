package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection stores values of T as JSON documents. key and id extract the
// group and record id of a value.
type Collection[T any] struct {
	store Store
	key   func(T) string
	id    func(T) string
}

func NewCollection[T any](store Store, key, id func(T) string) *Collection[T] {
	return &Collection[T]{store: store, key: key, id: id}
}

// Save upserts every value under key.
func (c *Collection[T]) Save(ctx context.Context, key string, values []T) error {
	for _, v := range values {
		if k := c.key(v); k != key {
			return fmt.Errorf("record key %q does not match group %q", k, key)
		}
		doc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", key, c.id(v), err)
		}
		if err := c.store.Put(ctx, key, c.id(v), doc); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection[T]) Find(ctx context.Context, key, id string) (T, error) {
	var v T
	doc, err := c.store.Get(ctx, key, id)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(doc, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", key, id, err)
	}
	return v, nil
}

func (c *Collection[T]) FindAll(ctx context.Context, key string) ([]T, error) {
	docs, err := c.store.List(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Collection[T]) DeleteAll(ctx context.Context, key string) error {
	return c.store.DeleteAll(ctx, key)
}
