package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

// redisStore maps every product key to one hash: field = record id,
// value = JSON document.
type redisStore struct {
	client    *redis.Client
	namespace string
}

func NewRedisStore(addr, namespace string) Store {
	return &redisStore{
		client:    redis.NewClient(&redis.Options{Addr: addr}),
		namespace: namespace,
	}
}

func (r *redisStore) hashKey(key string) string {
	return fmt.Sprintf("%s:%s", r.namespace, key)
}

func (r *redisStore) Put(ctx context.Context, key, id string, doc []byte) error {
	if err := r.client.HSet(ctx, r.hashKey(key), id, doc).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *redisStore) Get(ctx context.Context, key, id string) ([]byte, error) {
	b, err := r.client.HGet(ctx, r.hashKey(key), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s %s/%s", catalog.ErrNotFound, r.namespace, key, id)
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return b, nil
}

func (r *redisStore) List(ctx context.Context, key string) ([][]byte, error) {
	all, err := r.client.HGetAll(ctx, r.hashKey(key)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sortIDs(ids)
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, []byte(all[id]))
	}
	return out, nil
}

func (r *redisStore) DeleteAll(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.hashKey(key)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *redisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: redis: %v", catalog.ErrUnavailable, err)
}
