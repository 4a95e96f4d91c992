// Package resilience decorates downstream calls with failure isolation.
//
// A Policy composes, outermost first:
//
//	bulkhead -> rate limiter -> circuit breaker -> timeout -> retry -> call
//
// Load-shedding layers (bulkhead, rate limiter, open breaker) reject before
// any downstream work happens. The breaker sees one outcome per call, after
// retries, and the timeout bounds the whole retry sequence.
package resilience

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Config is the per-domain resilience block resolved from configuration.
type Config struct {
	CircuitBreaker BreakerConfig     `mapstructure:"circuit_breaker"`
	Retry          RetryConfig       `mapstructure:"retry"`
	Timeout        time.Duration     `mapstructure:"timeout"`
	RateLimiter    RateLimiterConfig `mapstructure:"rate_limiter"`
	Bulkhead       BulkheadConfig    `mapstructure:"bulkhead"`
}

// Policy chains the bulkhead, rate limiter, circuit breaker, time limiter
// and retry guarding one downstream domain.
type Policy struct {
	name     string
	bulkhead *Bulkhead
	limiter  *RateLimiter
	breaker  *CircuitBreaker
	timeout  timeout
	retry    retry
}

// Option customizes a Policy built by New.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	breaker []BreakerOption
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithBreakerOptions(opts ...BreakerOption) Option {
	return func(o *options) { o.breaker = append(o.breaker, opts...) }
}

// New builds the policy for one downstream domain. Values are read once;
// there is no live reload.
func New(name string, cfg Config, opts ...Option) *Policy {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("policy", name)

	breakerOpts := append([]BreakerOption{WithTransitionObserver(func(t Transition) {
		logger.Warn("circuit breaker transition", "from", t.From.String(), "to", t.To.String())
	})}, o.breaker...)

	return &Policy{
		name:     name,
		bulkhead: NewBulkhead(name, cfg.Bulkhead),
		limiter:  NewRateLimiter(name, cfg.RateLimiter),
		breaker:  NewCircuitBreaker(name, cfg.CircuitBreaker, breakerOpts...),
		timeout:  timeout{name: name, d: cfg.Timeout},
		retry: retry{
			cfg: cfg.Retry.withDefaults(),
			onRetry: func(attempt int, err error, wait time.Duration) {
				logger.Info("retrying downstream call", "attempt", attempt, "wait", wait, "error", err)
			},
		},
	}
}

// Name is the domain the policy guards.
func (p *Policy) Name() string { return p.name }

func (p *Policy) Breaker() *CircuitBreaker { return p.breaker }

// Execute runs fn through every layer of the policy.
func (p *Policy) Execute(ctx context.Context, fn func(context.Context) error) error {
	return p.bulkhead.Execute(ctx, func(ctx context.Context) error {
		return p.limiter.Execute(ctx, func(ctx context.Context) error {
			return p.breaker.Execute(ctx, func(ctx context.Context) error {
				return p.timeout.Execute(ctx, func(ctx context.Context) error {
					return p.retry.Execute(ctx, fn)
				})
			})
		})
	})
}

// Call is Execute for functions that produce a value. The value of the last
// successful attempt wins; on error the zero value is returned.
func Call[T any](ctx context.Context, p *Policy, fn func(context.Context) (T, error)) (T, error) {
	var (
		mu  sync.Mutex
		out T
	)
	err := p.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		out = v
		mu.Unlock()
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	mu.Lock()
	defer mu.Unlock()
	return out, nil
}

type Snapshot struct {
	Name             string          `json:"name"`
	Breaker          BreakerSnapshot `json:"circuitBreaker"`
	BulkheadInFlight int64           `json:"bulkheadInFlight"`
	BulkheadRejected int64           `json:"bulkheadRejected"`
	RateLimited      int64           `json:"rateLimited"`
}

func (p *Policy) Snapshot() Snapshot {
	return Snapshot{
		Name:             p.name,
		Breaker:          p.breaker.Snapshot(),
		BulkheadInFlight: p.bulkhead.InFlight(),
		BulkheadRejected: p.bulkhead.Rejected(),
		RateLimited:      p.limiter.Rejected(),
	}
}

// Registry holds the process-wide policy of every downstream domain.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]*Policy
}

func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]*Policy)}
}

// Register builds and stores the policy for name, replacing any previous one.
func (r *Registry) Register(name string, cfg Config, opts ...Option) *Policy {
	p := New(name, cfg, opts...)
	r.mu.Lock()
	r.policies[name] = p
	r.mu.Unlock()
	return p
}

func (r *Registry) Get(name string) (*Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[name]
	return p, ok
}

// Snapshots returns every policy's counters ordered by name.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p.Snapshot())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
