package service

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging"
	"github.com/jcmexdev/product-catalog/internal/pkg/resilience"
	"github.com/jcmexdev/product-catalog/internal/product-composite/core/domain/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProducts struct {
	calls   atomic.Int32
	product catalog.Product
	err     error
	lastOpt entity.ReadOptions
	// answerFor, when set, replaces the requested key in the returned product.
	answerFor string
}

func (f *fakeProducts) Get(_ context.Context, productKey string, opts entity.ReadOptions) (catalog.Product, error) {
	f.calls.Add(1)
	f.lastOpt = opts
	if f.err != nil {
		return catalog.Product{}, f.err
	}
	p := f.product
	p.ProductKey = productKey
	if f.answerFor != "" {
		p.ProductKey = f.answerFor
	}
	return p, nil
}

// fakeFetcher serves one scripted attempt per call; the last attempt repeats.
type fakeFetcher[T any] struct {
	mu       sync.Mutex
	calls    int
	attempts []attempt[T]
}

type attempt[T any] struct {
	records []T
	err     error
}

func (f *fakeFetcher[T]) Fetch(ctx context.Context, _ string) iter.Seq2[T, error] {
	f.mu.Lock()
	i := min(f.calls, len(f.attempts)-1)
	f.calls++
	a := f.attempts[i]
	f.mu.Unlock()

	return func(yield func(T, error) bool) {
		for _, r := range a.records {
			if !yield(r, nil) {
				return
			}
		}
		if a.err != nil {
			var zero T
			yield(zero, a.err)
		}
	}
}

func (f *fakeFetcher[T]) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func staticFetcher[T any](records []T, err error) *fakeFetcher[T] {
	return &fakeFetcher[T]{attempts: []attempt[T]{{records: records, err: err}}}
}

func testPolicies(cfg resilience.Config) Policies {
	return Policies{
		Product:        resilience.New("product", cfg, resilience.WithLogger(discardLogger())),
		Recommendation: resilience.New("recommendation", cfg, resilience.WithLogger(discardLogger())),
		Review:         resilience.New("review", cfg, resilience.WithLogger(discardLogger())),
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]messaging.Event
	fail   map[string]error
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: map[string][]messaging.Event{}, fail: map[string]error{}}
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, ev messaging.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail[topic]; err != nil {
		return err
	}
	p.events[topic] = append(p.events[topic], ev)
	return nil
}

func (p *recordingPublisher) Topic(topic string) []messaging.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[topic]
}
