package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

// State is the circuit breaker state. There is no terminal state: a breaker
// cycles CLOSED -> OPEN -> HALF_OPEN -> (CLOSED | OPEN) for the life of the
// process.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// BreakerConfig mirrors the count-based sliding window knobs of the breaker.
type BreakerConfig struct {
	// SlidingWindowSize is the number of most recent outcomes considered while
	// CLOSED. The failure ratio is only evaluated once the window is full.
	SlidingWindowSize int `mapstructure:"sliding_window_size"`
	// FailureRateThreshold in (0,1]: trip when (failed or slow)/window >= threshold.
	FailureRateThreshold float64 `mapstructure:"failure_rate_threshold"`
	// SlowCallDurationThreshold marks successful calls slower than this as slow.
	// Zero disables slow-call tracking.
	SlowCallDurationThreshold time.Duration `mapstructure:"slow_call_duration_threshold"`
	WaitDurationInOpenState   time.Duration `mapstructure:"wait_duration_in_open_state"`
	// PermittedCallsInHalfOpenState trial calls decide whether to close again.
	PermittedCallsInHalfOpenState int `mapstructure:"permitted_calls_in_half_open_state"`
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.SlidingWindowSize <= 0 {
		c.SlidingWindowSize = 10
	}
	if c.FailureRateThreshold <= 0 || c.FailureRateThreshold > 1 {
		c.FailureRateThreshold = 0.5
	}
	if c.WaitDurationInOpenState <= 0 {
		c.WaitDurationInOpenState = 10 * time.Second
	}
	if c.PermittedCallsInHalfOpenState <= 0 {
		c.PermittedCallsInHalfOpenState = 3
	}
	return c
}

// Transition is reported to the optional observer on every state change.
type Transition struct {
	Name string
	From State
	To   State
	At   time.Time
}

// BreakerSnapshot is a point-in-time copy of the breaker counters. While
// HALF_OPEN the call counts are those of the trial calls; while OPEN they are
// zero.
type BreakerSnapshot struct {
	Name           string    `json:"name"`
	State          string    `json:"state"`
	BufferedCalls  int       `json:"bufferedCalls"`
	FailedCalls    int       `json:"failedCalls"`
	SlowCalls      int       `json:"slowCalls"`
	FailureRate    float64   `json:"failureRate"`
	NotPermitted   int64     `json:"notPermittedCalls"`
	LastTransition time.Time `json:"lastTransition"`
}

type outcome struct {
	failed bool
	slow   bool
}

func (o outcome) bad() bool { return o.failed || o.slow }

// CircuitBreaker is safe for concurrent use. All state lives behind mu and is
// only changed through acquire/record, so concurrent calls never race on the
// window or the counters.
type CircuitBreaker struct {
	name         string
	cfg          BreakerConfig
	now          func() time.Time
	onTransition func(Transition)

	mu             sync.Mutex
	state          State
	generation     uint64
	transitionedAt time.Time
	notPermitted   int64

	// CLOSED sliding window, a ring buffer of the last SlidingWindowSize outcomes.
	window []outcome
	next   int
	filled int
	failed int
	slow   int

	// HALF_OPEN trial bookkeeping. Slow counts only calls that did not fail.
	trialsAdmitted int
	trialsDone     int
	trialsFailed   int
	trialsSlow     int
}

type BreakerOption func(*CircuitBreaker)

// WithClock replaces time.Now, used by tests to step through the wait duration.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *CircuitBreaker) { b.now = now }
}

// WithTransitionObserver registers a callback invoked (outside the lock) on
// every state change.
func WithTransitionObserver(fn func(Transition)) BreakerOption {
	return func(b *CircuitBreaker) { b.onTransition = fn }
}

func NewCircuitBreaker(name string, cfg BreakerConfig, opts ...BreakerOption) *CircuitBreaker {
	cfg = cfg.withDefaults()
	b := &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		window: make([]outcome, cfg.SlidingWindowSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.transitionedAt = b.now()
	return b
}

func (b *CircuitBreaker) Name() string { return b.name }

// State returns the current state, moving OPEN to HALF_OPEN when the wait
// duration has elapsed.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	t, changed := b.maybeHalfOpenLocked()
	s := b.state
	b.mu.Unlock()
	if changed {
		b.notify(t)
	}
	return s
}

// Execute runs fn if the breaker permits it and records the outcome.
// Rejected calls return ErrCircuitOpen without invoking fn.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	gen, err := b.acquire()
	if err != nil {
		return err
	}
	start := b.now()
	err = fn(ctx)
	b.record(gen, err, b.now().Sub(start))
	return err
}

func (b *CircuitBreaker) acquire() (uint64, error) {
	b.mu.Lock()
	t, changed := b.maybeHalfOpenLocked()
	var err error
	switch b.state {
	case StateOpen:
		err = fmt.Errorf("%s: %w", b.name, catalog.ErrCircuitOpen)
	case StateHalfOpen:
		if b.trialsAdmitted >= b.cfg.PermittedCallsInHalfOpenState {
			err = fmt.Errorf("%s: %w (half-open trials exhausted)", b.name, catalog.ErrCircuitOpen)
		} else {
			b.trialsAdmitted++
		}
	}
	if err != nil {
		b.notPermitted++
	}
	gen := b.generation
	b.mu.Unlock()
	if changed {
		b.notify(t)
	}
	return gen, err
}

func (b *CircuitBreaker) record(gen uint64, callErr error, elapsed time.Duration) {
	o, ok := b.classify(callErr, elapsed)
	if !ok {
		b.releaseTrial(gen)
		return
	}

	b.mu.Lock()
	// Outcomes of calls admitted before the last transition belong to a
	// window that no longer exists.
	if gen != b.generation {
		b.mu.Unlock()
		return
	}
	var (
		t       Transition
		changed bool
	)
	switch b.state {
	case StateClosed:
		b.pushLocked(o)
		if b.filled == len(b.window) && b.badRateLocked() >= b.cfg.FailureRateThreshold {
			t, changed = b.transitionLocked(StateOpen), true
		}
	case StateHalfOpen:
		b.trialsDone++
		b.trialsFailed += boolInt(o.failed)
		b.trialsSlow += boolInt(o.slow && !o.failed)
		if b.trialsDone >= b.cfg.PermittedCallsInHalfOpenState {
			if b.badRateLocked() >= b.cfg.FailureRateThreshold {
				t, changed = b.transitionLocked(StateOpen), true
			} else {
				t, changed = b.transitionLocked(StateClosed), true
			}
		}
	}
	b.mu.Unlock()
	if changed {
		b.notify(t)
	}
}

// releaseTrial gives back a half-open slot taken by a call whose outcome is
// not recorded (caller cancellation), so the breaker cannot wedge in HALF_OPEN.
func (b *CircuitBreaker) releaseTrial(gen uint64) {
	b.mu.Lock()
	if gen == b.generation && b.state == StateHalfOpen && b.trialsAdmitted > 0 {
		b.trialsAdmitted--
	}
	b.mu.Unlock()
}

// classify decides how an outcome counts. NotFound and InvalidInput are
// authoritative answers from a healthy service and count as successes; a
// cancellation by the caller says nothing about the downstream and is not
// recorded at all.
func (b *CircuitBreaker) classify(err error, elapsed time.Duration) (outcome, bool) {
	slow := b.cfg.SlowCallDurationThreshold > 0 && elapsed > b.cfg.SlowCallDurationThreshold
	switch {
	case err == nil,
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, catalog.ErrInvalidInput):
		return outcome{slow: slow}, true
	case errors.Is(err, context.Canceled):
		return outcome{}, false
	}
	return outcome{failed: true, slow: slow}, true
}

func (b *CircuitBreaker) pushLocked(o outcome) {
	if b.filled == len(b.window) {
		old := b.window[b.next]
		if old.bad() {
			b.failed -= boolInt(old.failed)
			b.slow -= boolInt(old.slow && !old.failed)
		}
	} else {
		b.filled++
	}
	b.window[b.next] = o
	b.next = (b.next + 1) % len(b.window)
	b.failed += boolInt(o.failed)
	b.slow += boolInt(o.slow && !o.failed)
}

// countsLocked returns the outcomes of the current state: the sliding
// window while CLOSED, the trial calls while HALF_OPEN, nothing while OPEN.
func (b *CircuitBreaker) countsLocked() (done, failed, slow int) {
	if b.state == StateHalfOpen {
		return b.trialsDone, b.trialsFailed, b.trialsSlow
	}
	return b.filled, b.failed, b.slow
}

// badRateLocked counts a call that was both failed and slow once.
func (b *CircuitBreaker) badRateLocked() float64 {
	done, failed, slow := b.countsLocked()
	if done == 0 {
		return 0
	}
	return float64(failed+slow) / float64(done)
}

func (b *CircuitBreaker) maybeHalfOpenLocked() (Transition, bool) {
	if b.state == StateOpen && b.now().Sub(b.transitionedAt) >= b.cfg.WaitDurationInOpenState {
		return b.transitionLocked(StateHalfOpen), true
	}
	return Transition{}, false
}

func (b *CircuitBreaker) transitionLocked(to State) Transition {
	t := Transition{Name: b.name, From: b.state, To: to, At: b.now()}
	b.state = to
	b.generation++
	b.transitionedAt = t.At
	b.trialsAdmitted, b.trialsDone, b.trialsFailed, b.trialsSlow = 0, 0, 0, 0
	clear(b.window)
	b.next, b.filled, b.failed, b.slow = 0, 0, 0, 0
	return t
}

func (b *CircuitBreaker) notify(t Transition) {
	if b.onTransition != nil {
		b.onTransition(t)
	}
}

func (b *CircuitBreaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	t, changed := b.maybeHalfOpenLocked()
	done, failed, slow := b.countsLocked()
	s := BreakerSnapshot{
		Name:           b.name,
		State:          b.state.String(),
		BufferedCalls:  done,
		FailedCalls:    failed,
		SlowCalls:      slow,
		FailureRate:    b.badRateLocked(),
		NotPermitted:   b.notPermitted,
		LastTransition: b.transitionedAt,
	}
	b.mu.Unlock()
	if changed {
		b.notify(t)
	}
	return s
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
