package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/product-catalog/internal/product-composite/infra/httpx/middlewares"
)

// NewRouter wires the composite API. The static /composite/resilience route
// wins over a product keyed "resilience".
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestContext)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", handler.Health)
	r.Post("/composite", handler.CreateProduct)
	r.Get("/composite/resilience", handler.Resilience)
	r.Get("/composite/{productKey}", handler.GetProduct)
	r.Delete("/composite/{productKey}", handler.DeleteProduct)
	return r
}
