package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/product-catalog/internal/product-composite/core/domain/entity"
	"github.com/jcmexdev/product-catalog/internal/product-composite/core/ports"
)

// Handler serves the composite product API.
type Handler struct {
	composer   ports.ProductComposer
	writer     ports.ProductWriter
	resilience ports.ResilienceReporter
	logger     *slog.Logger
}

// NewHandler wires the HTTP handlers to the composite use cases.
func NewHandler(composer ports.ProductComposer, writer ports.ProductWriter, reporter ports.ResilienceReporter, logger *slog.Logger) *Handler {
	return &Handler{
		composer:   composer,
		writer:     writer,
		resilience: reporter,
		logger:     logger,
	}
}

// GetProduct composes the product from every domain. delay and faultPercent
// are forwarded to the product service.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productKey := chi.URLParam(r, "productKey")

	opts, ok := readOptions(w, r)
	if !ok {
		return
	}

	agg, err := h.composer.ComposeProduct(r.Context(), productKey, opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapAggregateToResponse(agg))
}

// CreateProduct publishes the aggregate to the downstream services and
// returns once every event was accepted by the broker.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductAggregateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	h.logger.InfoContext(r.Context(), "creating composite product", "product_key", req.ProductKey,
		"recommendations", len(req.Recommendations), "reviews", len(req.Reviews))

	if err := h.writer.CreateProduct(r.Context(), mapRequestToAggregate(req)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// DeleteProduct publishes delete events for all three domains. Deleting an
// unknown key is still accepted.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productKey := chi.URLParam(r, "productKey")

	h.logger.InfoContext(r.Context(), "deleting composite product", "product_key", productKey)

	if err := h.writer.DeleteProduct(r.Context(), productKey); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Resilience reports the breaker, bulkhead and rate limiter state of every
// downstream domain.
func (h *Handler) Resilience(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ResilienceResponse{Policies: h.resilience.Snapshots()})
}

// Health reports the composite as up while it can serve requests.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

func readOptions(w http.ResponseWriter, r *http.Request) (entity.ReadOptions, bool) {
	var opts entity.ReadOptions
	q := r.URL.Query()
	for name, dst := range map[string]*int{"delay": &opts.DelaySeconds, "faultPercent": &opts.FaultPercent} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", name+" must be an integer")
			return opts, false
		}
		*dst = v
	}
	if opts.DelaySeconds < 0 {
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", "delay must not be negative")
		return opts, false
	}
	if opts.FaultPercent < 0 || opts.FaultPercent > 100 {
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", "faultPercent must be between 0 and 100")
		return opts, false
	}
	return opts, true
}

func mapAggregateToResponse(agg entity.ProductAggregate) ProductAggregateDTO {
	resp := ProductAggregateDTO{
		ProductKey:      agg.ProductKey,
		Name:            agg.Name,
		Weight:          agg.Weight,
		Recommendations: make([]RecommendationDTO, len(agg.Recommendations)),
		Reviews:         make([]ReviewDTO, len(agg.Reviews)),
		Provenance: &ProvenanceDTO{
			Degraded: agg.Provenance.Degraded,
			Domains:  make(map[string]DomainOutcomeDTO, len(agg.Provenance.Domains)),
		},
		ServiceAddresses: &ServiceAddressesDTO{
			Composite:      agg.ServiceAddresses.Composite,
			Product:        agg.ServiceAddresses.Product,
			Recommendation: agg.ServiceAddresses.Recommendation,
			Review:         agg.ServiceAddresses.Review,
		},
	}
	for i, r := range agg.Recommendations {
		resp.Recommendations[i] = RecommendationDTO{
			RecommendationID: r.RecommendationID,
			Author:           r.Author,
			Rate:             r.Rate,
			Content:          r.Content,
		}
	}
	for i, r := range agg.Reviews {
		resp.Reviews[i] = ReviewDTO{
			ReviewID: r.ReviewID,
			Author:   r.Author,
			Subject:  r.Subject,
			Content:  r.Content,
		}
	}
	for d, p := range agg.Provenance.Domains {
		resp.Provenance.Domains[string(d)] = DomainOutcomeDTO{
			Outcome:      string(p.Outcome),
			ErrorKind:    string(p.ErrorKind),
			BreakerState: p.BreakerState,
		}
	}
	return resp
}

func mapRequestToAggregate(req ProductAggregateDTO) entity.ProductAggregate {
	agg := entity.ProductAggregate{
		ProductKey:      req.ProductKey,
		Name:            req.Name,
		Weight:          req.Weight,
		Recommendations: make([]entity.RecommendationSummary, len(req.Recommendations)),
		Reviews:         make([]entity.ReviewSummary, len(req.Reviews)),
	}
	for i, r := range req.Recommendations {
		agg.Recommendations[i] = entity.RecommendationSummary{
			RecommendationID: r.RecommendationID,
			Author:           r.Author,
			Rate:             r.Rate,
			Content:          r.Content,
		}
	}
	for i, r := range req.Reviews {
		agg.Reviews[i] = entity.ReviewSummary{
			ReviewID: r.ReviewID,
			Author:   r.Author,
			Subject:  r.Subject,
			Content:  r.Content,
		}
	}
	return agg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}

