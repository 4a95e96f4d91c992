package httpx

import "github.com/jcmexdev/product-catalog/internal/pkg/resilience"

type ProductAggregateDTO struct {
	ProductKey       string               `json:"productKey"`
	Name             string               `json:"name"`
	Weight           int                  `json:"weight"`
	Recommendations  []RecommendationDTO  `json:"recommendations"`
	Reviews          []ReviewDTO          `json:"reviews"`
	Provenance       *ProvenanceDTO       `json:"provenance,omitempty"`
	ServiceAddresses *ServiceAddressesDTO `json:"serviceAddresses,omitempty"`
}

type RecommendationDTO struct {
	RecommendationID int    `json:"recommendationId"`
	Author           string `json:"author"`
	Rate             int    `json:"rate"`
	Content          string `json:"content"`
}

type ReviewDTO struct {
	ReviewID int    `json:"reviewId"`
	Author   string `json:"author"`
	Subject  string `json:"subject"`
	Content  string `json:"content"`
}

type ProvenanceDTO struct {
	Degraded bool                        `json:"degraded"`
	Domains  map[string]DomainOutcomeDTO `json:"domains"`
}

type DomainOutcomeDTO struct {
	Outcome      string `json:"outcome"`
	ErrorKind    string `json:"errorKind,omitempty"`
	BreakerState string `json:"breakerState"`
}

type ServiceAddressesDTO struct {
	Composite      string `json:"cmp"`
	Product        string `json:"pro"`
	Recommendation string `json:"rec"`
	Review         string `json:"rev"`
}

type ResilienceResponse struct {
	Policies []resilience.Snapshot `json:"policies"`
}

type ErrorResponse struct {
	Error         string   `json:"error"`
	Message       string   `json:"message,omitempty"`
	FailedDomains []string `json:"failedDomains,omitempty"`
}
