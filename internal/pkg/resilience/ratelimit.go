package resilience

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

type RateLimiterConfig struct {
	// LimitForPeriod permits are refilled every LimitRefreshPeriod. Zero disables the limiter.
	LimitForPeriod     int           `mapstructure:"limit_for_period"`
	LimitRefreshPeriod time.Duration `mapstructure:"limit_refresh_period"`
}

// RateLimiter rejects instead of waiting: a call that finds no permit fails
// with ErrRateLimited.
type RateLimiter struct {
	name     string
	limiter  *rate.Limiter
	rejected atomic.Int64
}

// NewRateLimiter spreads LimitForPeriod permits over LimitRefreshPeriod. It
// returns nil, a disabled limiter, when LimitForPeriod is not positive.
func NewRateLimiter(name string, cfg RateLimiterConfig) *RateLimiter {
	if cfg.LimitForPeriod <= 0 {
		return nil
	}
	period := cfg.LimitRefreshPeriod
	if period <= 0 {
		period = time.Second
	}
	every := rate.Every(period / time.Duration(cfg.LimitForPeriod))
	return &RateLimiter{
		name:    name,
		limiter: rate.NewLimiter(every, cfg.LimitForPeriod),
	}
}

// Execute is a pass-through on a nil RateLimiter.
func (r *RateLimiter) Execute(ctx context.Context, fn func(context.Context) error) error {
	if r == nil {
		return fn(ctx)
	}
	if !r.limiter.Allow() {
		r.rejected.Add(1)
		return fmt.Errorf("%s: %w", r.name, catalog.ErrRateLimited)
	}
	return fn(ctx)
}

func (r *RateLimiter) Rejected() int64 {
	if r == nil {
		return 0
	}
	return r.rejected.Load()
}
