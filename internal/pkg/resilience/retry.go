package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

type RetryConfig struct {
	// MaxAttempts counts the first call. 1 disables retries.
	MaxAttempts         int           `mapstructure:"max_attempts"`
	InitialInterval     time.Duration `mapstructure:"initial_interval"`
	Multiplier          float64       `mapstructure:"multiplier"`
	MaxInterval         time.Duration `mapstructure:"max_interval"`
	RandomizationFactor float64       `mapstructure:"randomization_factor"`
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 100 * time.Millisecond
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 2 * time.Second
	}
	return c
}

// retry re-invokes fn for transient failures only. Each call builds its own
// backoff, so attempt counters are never shared between calls.
type retry struct {
	cfg     RetryConfig
	onRetry func(attempt int, err error, wait time.Duration)
}

func (r retry) Execute(ctx context.Context, fn func(context.Context) error) error {
	if r.cfg.MaxAttempts <= 1 {
		return fn(ctx)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.cfg.InitialInterval
	eb.Multiplier = r.cfg.Multiplier
	eb.MaxInterval = r.cfg.MaxInterval
	eb.RandomizationFactor = r.cfg.RandomizationFactor
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.cfg.MaxAttempts-1)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !catalog.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if r.onRetry != nil {
			r.onRetry(attempt, err, wait)
		}
	}
	return backoff.RetryNotify(op, b, notify)
}
