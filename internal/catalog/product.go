// Package catalog holds the types shared by the composite and the three
// downstream services: the product, recommendation and review records, the
// domain names used to route events, and the error kinds every layer
// classifies failures with.
package catalog

import (
	"fmt"
	"strings"
)

// Domain identifies one independently owned downstream service.
type Domain string

const (
	DomainProduct        Domain = "product"
	DomainRecommendation Domain = "recommendation"
	DomainReview         Domain = "review"
)

// Domains lists every downstream domain in the order the composite merges them.
var Domains = []Domain{DomainProduct, DomainRecommendation, DomainReview}

// Topic is the broker topic that carries events for the domain.
func (d Domain) Topic() string {
	switch d {
	case DomainProduct:
		return "products"
	case DomainRecommendation:
		return "recommendations"
	case DomainReview:
		return "reviews"
	}
	return ""
}

func (d Domain) Valid() bool {
	return d.Topic() != ""
}

// ParseDomain accepts the domain names used in config keys and event payloads.
func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: unknown domain %q", ErrInvalidInput, s)
	}
	return d, nil
}

type Product struct {
	ProductKey     string `json:"productKey"`
	Name           string `json:"name"`
	Weight         int    `json:"weight"`
	ServiceAddress string `json:"serviceAddress,omitempty"`
}

type Recommendation struct {
	ProductKey       string `json:"productKey"`
	RecommendationID int    `json:"recommendationId"`
	Author           string `json:"author"`
	Rate             int    `json:"rate"`
	Content          string `json:"content"`
	ServiceAddress   string `json:"serviceAddress,omitempty"`
}

type Review struct {
	ProductKey     string `json:"productKey"`
	ReviewID       int    `json:"reviewId"`
	Author         string `json:"author"`
	Subject        string `json:"subject"`
	Content        string `json:"content"`
	ServiceAddress string `json:"serviceAddress,omitempty"`
}

// ValidateKey rejects blank product keys before they reach a store or a topic.
func ValidateKey(productKey string) error {
	if strings.TrimSpace(productKey) == "" {
		return fmt.Errorf("%w: product key is required", ErrInvalidInput)
	}
	return nil
}
