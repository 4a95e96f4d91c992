// Package app implements the product service: the GetProduct RPC and the
// consumer side of the products topic.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/catalogrpc"
)

type Repository interface {
	Save(ctx context.Context, p catalog.Product) error
	Find(ctx context.Context, productKey string) (catalog.Product, error)
	Delete(ctx context.Context, productKey string) error
}

type productServer struct {
	repo    Repository
	address string
	logger  *slog.Logger
	// roll returns a value in [0, 100).
	roll  func() int
	sleep func(ctx context.Context, d time.Duration) error
}

var _ catalogrpc.ProductServer = (*productServer)(nil)

func NewProductServer(repo Repository, address string, logger *slog.Logger) *productServer {
	return &productServer{
		repo:    repo,
		address: address,
		logger:  logger,
		roll:    func() int { return rand.IntN(100) },
		sleep:   sleep,
	}
}

func (s *productServer) GetProduct(ctx context.Context, r catalogrpc.Request) (catalog.Product, error) {
	if err := s.simulate(ctx, r); err != nil {
		return catalog.Product{}, err
	}

	p, err := s.repo.Find(ctx, r.ProductKey)
	if err != nil {
		return catalog.Product{}, err
	}
	p.ServiceAddress = s.address
	s.logger.DebugContext(ctx, "product found", "product_key", p.ProductKey)
	return p, nil
}

// simulate applies the delay and fault-injection hooks carried by r.
func (s *productServer) simulate(ctx context.Context, r catalogrpc.Request) error {
	if r.Delay > 0 {
		s.logger.DebugContext(ctx, "sleeping before answering", "delay", r.Delay)
		if err := s.sleep(ctx, r.Delay); err != nil {
			return err
		}
	}
	if r.FaultPercent > 0 {
		if n := s.roll(); n < r.FaultPercent {
			s.logger.DebugContext(ctx, "injecting fault", "roll", n, "fault_percent", r.FaultPercent)
			return fmt.Errorf("%w: something went wrong", catalog.ErrUnavailable)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
