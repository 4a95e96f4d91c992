package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging"
)

type applier struct {
	repo Repository
}

var _ messaging.Applier = applier{}

func NewApplier(repo Repository) messaging.Applier {
	return applier{repo: repo}
}

func (a applier) Upsert(ctx context.Context, key string, data json.RawMessage) error {
	p, err := messaging.DecodePayload[catalog.Product](data)
	if err != nil {
		return err
	}
	if p.ProductKey != key {
		return fmt.Errorf("%w: product %q published under key %q", messaging.ErrEventProcessing, p.ProductKey, key)
	}
	p.ServiceAddress = ""
	return a.repo.Save(ctx, p)
}

func (a applier) DeleteAll(ctx context.Context, key string) error {
	return a.repo.Delete(ctx, key)
}
