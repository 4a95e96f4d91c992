// Package service holds the composite's use cases: composing a product from
// the three downstream domains and publishing write events to them.
package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/resilience"
	"github.com/jcmexdev/product-catalog/internal/product-composite/core/domain/entity"
	"github.com/jcmexdev/product-catalog/internal/product-composite/core/ports"
)

// Policies are the per-domain resilience policies wrapping each client.
type Policies struct {
	Product        *resilience.Policy
	Recommendation *resilience.Policy
	Review         *resilience.Policy
}

// PoliciesFrom looks up the three domain policies in r.
func PoliciesFrom(r *resilience.Registry) (Policies, error) {
	var p Policies
	for _, d := range catalog.Domains {
		pol, ok := r.Get(string(d))
		if !ok {
			return Policies{}, fmt.Errorf("no resilience policy registered for %s", d)
		}
		switch d {
		case catalog.DomainProduct:
			p.Product = pol
		case catalog.DomainRecommendation:
			p.Recommendation = pol
		case catalog.DomainReview:
			p.Review = pol
		}
	}
	return p, nil
}

type Aggregator struct {
	products        ports.ProductReader
	recommendations ports.RecordFetcher[catalog.Recommendation]
	reviews         ports.RecordFetcher[catalog.Review]
	policies        Policies
	address         string
	logger          *slog.Logger
}

var _ ports.ProductComposer = (*Aggregator)(nil)

func NewAggregator(
	products ports.ProductReader,
	recommendations ports.RecordFetcher[catalog.Recommendation],
	reviews ports.RecordFetcher[catalog.Review],
	policies Policies,
	address string,
	logger *slog.Logger,
) *Aggregator {
	return &Aggregator{
		products:        products,
		recommendations: recommendations,
		reviews:         reviews,
		policies:        policies,
		address:         address,
		logger:          logger,
	}
}

// ComposeProduct reads the three domains concurrently. A product failure
// fails the whole read; recommendation or review failures degrade the
// aggregate to an empty section with the failure kind in its provenance.
func (a *Aggregator) ComposeProduct(ctx context.Context, productKey string, opts entity.ReadOptions) (entity.ProductAggregate, error) {
	if err := catalog.ValidateKey(productKey); err != nil {
		return entity.ProductAggregate{}, err
	}

	var (
		product         catalog.Product
		recommendations []catalog.Recommendation
		reviews         []catalog.Review
		recErr, revErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := resilience.Call(gctx, a.policies.Product, func(ctx context.Context) (catalog.Product, error) {
			p, err := a.products.Get(ctx, productKey, opts)
			if err == nil && p.ProductKey != productKey {
				err = foreignRecord(productKey, p.ProductKey)
			}
			return p, err
		})
		if err != nil {
			return fmt.Errorf("product %s: %w", productKey, err)
		}
		product = p
		return nil
	})
	g.Go(func() error {
		recommendations, recErr = collect(gctx, a.policies.Recommendation, productKey, a.recommendations.Fetch, recommendationKey)
		return nil
	})
	g.Go(func() error {
		reviews, revErr = collect(gctx, a.policies.Review, productKey, a.reviews.Fetch, reviewKey)
		return nil
	})
	if err := g.Wait(); err != nil {
		a.logger.WarnContext(ctx, "composite read failed", "product_key", productKey, "error_kind", string(catalog.KindOf(err)), "error", err)
		return entity.ProductAggregate{}, err
	}

	agg := entity.ProductAggregate{
		ProductKey:      product.ProductKey,
		Name:            product.Name,
		Weight:          product.Weight,
		Recommendations: make([]entity.RecommendationSummary, 0, len(recommendations)),
		Reviews:         make([]entity.ReviewSummary, 0, len(reviews)),
		Provenance: entity.Provenance{
			Domains: map[catalog.Domain]entity.DomainProvenance{
				catalog.DomainProduct:        provenance(a.policies.Product, nil),
				catalog.DomainRecommendation: provenance(a.policies.Recommendation, recErr),
				catalog.DomainReview:         provenance(a.policies.Review, revErr),
			},
			Degraded: recErr != nil || revErr != nil,
		},
		ServiceAddresses: entity.ServiceAddresses{
			Composite: a.address,
			Product:   product.ServiceAddress,
		},
	}
	for _, r := range recommendations {
		agg.Recommendations = append(agg.Recommendations, entity.RecommendationSummary{
			RecommendationID: r.RecommendationID,
			Author:           r.Author,
			Rate:             r.Rate,
			Content:          r.Content,
		})
	}
	for _, r := range reviews {
		agg.Reviews = append(agg.Reviews, entity.ReviewSummary{
			ReviewID: r.ReviewID,
			Author:   r.Author,
			Subject:  r.Subject,
			Content:  r.Content,
		})
	}
	if len(recommendations) > 0 {
		agg.ServiceAddresses.Recommendation = recommendations[0].ServiceAddress
	}
	if len(reviews) > 0 {
		agg.ServiceAddresses.Review = reviews[0].ServiceAddress
	}

	if agg.Provenance.Degraded {
		a.logger.WarnContext(ctx, "returning degraded aggregate",
			"product_key", productKey,
			"recommendation_error", string(catalog.KindOf(recErr)),
			"review_error", string(catalog.KindOf(revErr)),
		)
	}
	return agg, nil
}

// collect drains one optional domain through its policy. A retry restarts
// the sequence, so records of a failed attempt never leak into the result.
// A record belonging to another product fails the whole attempt.
func collect[T any](ctx context.Context, p *resilience.Policy, productKey string, fetch func(context.Context, string) iter.Seq2[T, error], key func(T) string) ([]T, error) {
	return resilience.Call(ctx, p, func(ctx context.Context) ([]T, error) {
		out := make([]T, 0)
		for v, err := range fetch(ctx, productKey) {
			if err != nil {
				return nil, err
			}
			if got := key(v); got != productKey {
				return nil, foreignRecord(productKey, got)
			}
			out = append(out, v)
		}
		return out, nil
	})
}

func foreignRecord(want, got string) error {
	return fmt.Errorf("%w: record for %q in response for %q", catalog.ErrInvalidResponse, got, want)
}

func recommendationKey(r catalog.Recommendation) string { return r.ProductKey }
func reviewKey(r catalog.Review) string { return r.ProductKey }

func provenance(p *resilience.Policy, err error) entity.DomainProvenance {
	dp := entity.DomainProvenance{
		Outcome:      entity.OutcomeSucceeded,
		BreakerState: p.Breaker().State().String(),
	}
	if err != nil {
		dp.Outcome = entity.OutcomeFailed
		dp.ErrorKind = catalog.KindOf(err)
	}
	return dp
}
