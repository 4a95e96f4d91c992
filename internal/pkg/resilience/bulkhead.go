package resilience

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

type BulkheadConfig struct {
	// MaxConcurrentCalls caps in-flight calls for one domain. Zero disables the bulkhead.
	MaxConcurrentCalls int64 `mapstructure:"max_concurrent_calls"`
}

// Bulkhead never queues: a call that finds every slot taken fails at once
// with ErrOverloaded.
type Bulkhead struct {
	name     string
	max      int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	rejected atomic.Int64
}

// NewBulkhead returns nil when MaxConcurrentCalls is not positive, which
// disables the bulkhead.
func NewBulkhead(name string, cfg BulkheadConfig) *Bulkhead {
	if cfg.MaxConcurrentCalls <= 0 {
		return nil
	}
	return &Bulkhead{
		name: name,
		max:  cfg.MaxConcurrentCalls,
		sem:  semaphore.NewWeighted(cfg.MaxConcurrentCalls),
	}
}

// Execute is a pass-through on a nil Bulkhead.
func (b *Bulkhead) Execute(ctx context.Context, fn func(context.Context) error) error {
	if b == nil {
		return fn(ctx)
	}
	if !b.sem.TryAcquire(1) {
		b.rejected.Add(1)
		return fmt.Errorf("%s: %w (%d calls in flight)", b.name, catalog.ErrOverloaded, b.max)
	}
	b.inFlight.Add(1)
	defer func() {
		b.inFlight.Add(-1)
		b.sem.Release(1)
	}()
	return fn(ctx)
}

func (b *Bulkhead) InFlight() int64 {
	if b == nil {
		return 0
	}
	return b.inFlight.Load()
}

func (b *Bulkhead) Rejected() int64 {
	if b == nil {
		return 0
	}
	return b.rejected.Load()
}
