package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	gateway "github.com/burgonet-eu/gateway/internal"
)

// errorStatus maps a sentinel error to the client-visible status code of
// the error table. Unrecognized errors are a generic 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, gateway.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrRateExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, gateway.ErrGroupDenied):
		return http.StatusForbidden
	case errors.Is(err, gateway.ErrBudgetExceeded):
		return http.StatusForbidden
	case errors.Is(err, gateway.ErrLoginDenied):
		return http.StatusForbidden
	case errors.Is(err, gateway.ErrBlacklisted):
		return http.StatusForbidden
	case errors.Is(err, gateway.ErrPIIDetected):
		return http.StatusForbidden
	case errors.Is(err, gateway.ErrPIIServiceDown):
		return http.StatusInternalServerError
	case errors.Is(err, gateway.ErrBadUpstreamURL):
		return http.StatusInternalServerError
	case errors.Is(err, gateway.ErrParserFailed):
		return http.StatusInternalServerError
	case errors.Is(err, gateway.ErrStoreIO):
		return http.StatusInternalServerError
	case errors.Is(err, gateway.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Server", "Burgonet")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
