package entity

import "github.com/jcmexdev/product-catalog/internal/catalog"

type RecommendationSummary struct {
	RecommendationID int
	Author           string
	Rate             int
	Content          string
}

type ReviewSummary struct {
	ReviewID int
	Author   string
	Subject  string
	Content  string
}

type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
)

// DomainProvenance records how one downstream domain contributed to an
// aggregate. BreakerState is the breaker state observed after the call.
type DomainProvenance struct {
	Outcome      Outcome
	ErrorKind    catalog.Kind
	BreakerState string
}

type Provenance struct {
	Domains  map[catalog.Domain]DomainProvenance
	Degraded bool
}

type ServiceAddresses struct {
	Composite      string
	Product        string
	Recommendation string
	Review         string
}

// ProductAggregate is the merged read model. Recommendations and Reviews are
// never nil; an empty slice means none were found or the domain failed, and
// Provenance tells the two apart.
type ProductAggregate struct {
	ProductKey       string
	Name             string
	Weight           int
	Recommendations  []RecommendationSummary
	Reviews          []ReviewSummary
	Provenance       Provenance
	ServiceAddresses ServiceAddresses
}

// ReadOptions carries the downstream test hooks of a read.
type ReadOptions struct {
	DelaySeconds int
	FaultPercent int
}
