// Package docstore keeps JSON documents grouped by product key. Each group
// holds records addressed by id, so re-applying a record overwrites it.
package docstore

import (
	"context"
	"sort"
	"strconv"
)

type Store interface {
	// Put upserts one document.
	Put(ctx context.Context, key, id string, doc []byte) error
	// Get returns catalog.ErrNotFound when the document is absent.
	Get(ctx context.Context, key, id string) ([]byte, error)
	// List returns every document of key ordered by id. An absent key yields
	// an empty slice.
	List(ctx context.Context, key string) ([][]byte, error)
	// DeleteAll removes the group; deleting an absent key is not an error.
	DeleteAll(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// sortIDs orders numeric ids numerically and everything else lexically.
func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
}
