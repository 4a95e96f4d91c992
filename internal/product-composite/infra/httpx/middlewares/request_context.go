package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/product-catalog/internal/pkg/interceptors"
	"github.com/jcmexdev/product-catalog/internal/pkg/telemetry"
)

const tracerName = "product-composite/httpx"

// AttachRequestContext continues the caller's trace, opens a server span and
// stores the chi request id where loggers and gRPC clients pick it up.
func AttachRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(interceptors.RequestIDKey)
		if requestID == "" {
			requestID = middleware.GetReqID(r.Context())
		}

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := otel.Tracer(tracerName).Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("request.id", requestID),
			),
		)
		defer span.End()

		ctx = telemetry.WithRequestID(ctx, requestID)
		w.Header().Set(interceptors.RequestIDKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
