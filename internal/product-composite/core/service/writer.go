package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging"
	"github.com/jcmexdev/product-catalog/internal/product-composite/core/domain/entity"
	"github.com/jcmexdev/product-catalog/internal/product-composite/core/ports"
)

// PublishError names every domain whose event the broker did not accept.
// Events of the other domains were published and are not rolled back.
type PublishError struct {
	Failed []catalog.Domain
	errs   []error
}

func (e *PublishError) Error() string {
	names := make([]string, len(e.Failed))
	for i, d := range e.Failed {
		names[i] = string(d)
	}
	return fmt.Sprintf("publish failed for %s: %v", strings.Join(names, ", "), errors.Join(e.errs...))
}

func (e *PublishError) Unwrap() []error {
	return e.errs
}

type Writer struct {
	publisher ports.EventPublisher
	logger    *slog.Logger
}

var _ ports.ProductWriter = (*Writer)(nil)

func NewWriter(publisher ports.EventPublisher, logger *slog.Logger) *Writer {
	return &Writer{publisher: publisher, logger: logger}
}

// CreateProduct publishes a product CREATE event and, when the aggregate
// carries any, one CREATE event with the recommendations and one with the
// reviews.
func (w *Writer) CreateProduct(ctx context.Context, agg entity.ProductAggregate) error {
	if err := ValidateCreate(agg); err != nil {
		return err
	}

	key := agg.ProductKey
	var events []messaging.Event

	ev, err := messaging.NewCreateEvent(catalog.DomainProduct, key, catalog.Product{
		ProductKey: key,
		Name:       agg.Name,
		Weight:     agg.Weight,
	})
	if err != nil {
		return err
	}
	events = append(events, ev)

	if len(agg.Recommendations) > 0 {
		recs := make([]catalog.Recommendation, 0, len(agg.Recommendations))
		for _, r := range agg.Recommendations {
			recs = append(recs, catalog.Recommendation{
				ProductKey:       key,
				RecommendationID: r.RecommendationID,
				Author:           r.Author,
				Rate:             r.Rate,
				Content:          r.Content,
			})
		}
		ev, err := messaging.NewCreateEvent(catalog.DomainRecommendation, key, recs)
		if err != nil {
			return err
		}
		events = append(events, ev)
	}

	if len(agg.Reviews) > 0 {
		reviews := make([]catalog.Review, 0, len(agg.Reviews))
		for _, r := range agg.Reviews {
			reviews = append(reviews, catalog.Review{
				ProductKey: key,
				ReviewID:   r.ReviewID,
				Author:     r.Author,
				Subject:    r.Subject,
				Content:    r.Content,
			})
		}
		ev, err := messaging.NewCreateEvent(catalog.DomainReview, key, reviews)
		if err != nil {
			return err
		}
		events = append(events, ev)
	}

	w.logger.InfoContext(ctx, "publishing create events", "product_key", key, "events", len(events))
	return w.publishAll(ctx, events)
}

// DeleteProduct publishes a DELETE event to every domain, whether or not the
// product exists.
func (w *Writer) DeleteProduct(ctx context.Context, productKey string) error {
	if err := catalog.ValidateKey(productKey); err != nil {
		return err
	}
	events := make([]messaging.Event, 0, len(catalog.Domains))
	for _, d := range catalog.Domains {
		events = append(events, messaging.NewDeleteEvent(d, productKey))
	}
	w.logger.InfoContext(ctx, "publishing delete events", "product_key", productKey)
	return w.publishAll(ctx, events)
}

func (w *Writer) publishAll(ctx context.Context, events []messaging.Event) error {
	// Siblings of a failed publish still run; failures are collected in errs.
	errs := make([]error, len(events))
	var g errgroup.Group
	for i, ev := range events {
		g.Go(func() error {
			if err := w.publisher.Publish(ctx, ev.Domain.Topic(), ev); err != nil {
				if !errors.Is(err, catalog.ErrPublishFailure) {
					err = fmt.Errorf("%w: %v", catalog.ErrPublishFailure, err)
				}
				errs[i] = fmt.Errorf("%s: %w", ev.Domain, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	perr := &PublishError{}
	for i, err := range errs {
		if err != nil {
			perr.Failed = append(perr.Failed, events[i].Domain)
			perr.errs = append(perr.errs, err)
		}
	}
	if len(perr.Failed) == 0 {
		return nil
	}
	w.logger.ErrorContext(ctx, "publish failed", "product_key", events[0].Key, "error", perr)
	return perr
}

// ValidateCreate rejects aggregates no downstream store could apply.
func ValidateCreate(agg entity.ProductAggregate) error {
	if err := catalog.ValidateKey(agg.ProductKey); err != nil {
		return err
	}
	if agg.Weight < 0 {
		return fmt.Errorf("%w: weight must not be negative", catalog.ErrInvalidInput)
	}
	seen := make(map[int]bool, len(agg.Recommendations))
	for _, r := range agg.Recommendations {
		if seen[r.RecommendationID] {
			return fmt.Errorf("%w: duplicate recommendationId %d", catalog.ErrInvalidInput, r.RecommendationID)
		}
		seen[r.RecommendationID] = true
	}
	seen = make(map[int]bool, len(agg.Reviews))
	for _, r := range agg.Reviews {
		if seen[r.ReviewID] {
			return fmt.Errorf("%w: duplicate reviewId %d", catalog.ErrInvalidInput, r.ReviewID)
		}
		seen[r.ReviewID] = true
	}
	return nil
}
