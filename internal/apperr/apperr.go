package apperr

import (
	"errors"
	"net/http"
)

// Sentinel error kinds exposed by the service surface. Domain services wrap
// these with context via fmt.Errorf("...: %w", ...) and transport code maps
// them to status codes with errors.Is.
var (
	ErrInvalidRequest      = errors.New("invalid request")      // 400
	ErrNotFound            = errors.New("not found")            // 404
	ErrUnsupportedAsset    = errors.New("unsupported asset")    // 400
	ErrInsufficientBalance = errors.New("insufficient balance") // 400
	ErrLimitExceeded       = errors.New("limit exceeded")       // 400
	ErrRateLimited         = errors.New("too many requests")    // 429
	ErrBackendUnavailable  = errors.New("backend unavailable")  // 503
)

// HTTPStatus maps an error to the status code the API responds with.
// Unrecognised errors are treated as internal.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrUnsupportedAsset),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrLimitExceeded):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
