// Package apperr defines the internal error taxonomy from the engine's
// error-handling design and maps it to the HTTP status codes the inbound
// handler returns. Every error that can reach the handler boundary is one
// of these sentinels (or wraps one); anything else is treated as
// unclassified and becomes a 500.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrAuthRejected means the inbound Authorization header didn't match
	// the configured value.
	ErrAuthRejected = errors.New("apperr: auth rejected")
	// ErrMalformedRequest means the body failed to parse or was missing a
	// mandatory field.
	ErrMalformedRequest = errors.New("apperr: malformed request")
	// ErrAdmissionRejected means the concurrency limiter shed the request
	// before any upstream work began.
	ErrAdmissionRejected = errors.New("apperr: admission rejected")
	// ErrUpstreamsUnavailable means both breakers were open, both attempts
	// failed, or the request deadline elapsed.
	ErrUpstreamsUnavailable = errors.New("apperr: upstreams unavailable")
	// ErrUpstreamRejected means an upstream processor returned a non-408/429
	// 4xx, i.e. it explicitly rejected the payment.
	ErrUpstreamRejected = errors.New("apperr: upstream rejected payment")
	// ErrInternal is an unexpected, unclassified failure.
	ErrInternal = errors.New("apperr: internal error")
)

// StatusCode maps err to the HTTP status the handler should write. Unknown
// errors (including nil, which should never reach here) map to 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.Is(err, ErrAuthRejected):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMalformedRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrAdmissionRejected):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstreamsUnavailable), errors.Is(err, ErrUpstreamRejected):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
