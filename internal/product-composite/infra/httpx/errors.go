package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/product-composite/core/service"
)

// statusFor maps an error kind to the HTTP status returned to callers.
func statusFor(kind catalog.Kind) int {
	switch kind {
	case catalog.KindNotFound:
		return http.StatusNotFound
	case catalog.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case catalog.KindRateLimited:
		return http.StatusTooManyRequests
	case catalog.KindInvalidResponse:
		return http.StatusBadGateway
	case catalog.KindUnavailable, catalog.KindCircuitOpen, catalog.KindOverloaded, catalog.KindPublishFailure:
		return http.StatusServiceUnavailable
	case catalog.KindTimedOut:
		return http.StatusGatewayTimeout
	case catalog.KindCanceled:
		return 499
	}
	return http.StatusInternalServerError
}

func writeDomainError(w http.ResponseWriter, err error) {
	kind := catalog.KindOf(err)
	resp := ErrorResponse{
		Error:   strings.ToLower(string(kind)),
		Message: err.Error(),
	}
	var perr *service.PublishError
	if errors.As(err, &perr) {
		for _, d := range perr.Failed {
			resp.FailedDomains = append(resp.FailedDomains, string(d))
		}
	}
	if kind == catalog.KindInternal {
		resp.Message = "internal error"
	}
	writeJSON(w, statusFor(kind), resp)
}
