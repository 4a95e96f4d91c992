package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

// timeout bounds the whole retry sequence beneath it. fn runs on its own
// goroutine so a client that ignores its context still cannot hold the
// caller past the deadline.
type timeout struct {
	name string
	d    time.Duration
}

func (t timeout) Execute(ctx context.Context, fn func(context.Context) error) error {
	if t.d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) && !catalog.IsTransient(err) {
			return fmt.Errorf("%s: %w after %s", t.name, catalog.ErrTimedOut, t.d)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w after %s", t.name, catalog.ErrTimedOut, t.d)
		}
		return ctx.Err()
	}
}
