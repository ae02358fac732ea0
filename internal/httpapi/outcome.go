package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kayleemclaren/payment-intermediary/internal/apperr"
	"github.com/kayleemclaren/payment-intermediary/internal/idempotency"
)

const successMessage = "payment processed successfully"

func successOutcome() idempotency.Outcome {
	return idempotency.Outcome{StatusCode: http.StatusOK, Message: successMessage}
}

func errorOutcome(err error) idempotency.Outcome {
	return idempotency.Outcome{StatusCode: apperr.StatusCode(err), ErrorBody: userMessage(err)}
}

// userMessage maps an internal error to caller-facing text. It never
// leaks internal details (upstream URLs, Go error chains).
func userMessage(err error) string {
	switch {
	case errors.Is(err, apperr.ErrUpstreamRejected):
		return "payment was rejected by the payment processor"
	case errors.Is(err, apperr.ErrUpstreamsUnavailable):
		return "payment could not be processed, please retry"
	case errors.Is(err, apperr.ErrMalformedRequest):
		return "malformed request"
	case errors.Is(err, apperr.ErrAuthRejected):
		return "unauthorized"
	case errors.Is(err, apperr.ErrAdmissionRejected):
		return "too many concurrent requests, please retry"
	default:
		return "internal error"
	}
}

func writeOutcome(w http.ResponseWriter, o idempotency.Outcome) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(o.StatusCode)
	if o.StatusCode == http.StatusOK {
		_ = json.NewEncoder(w).Encode(map[string]string{"message": o.Message})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"error": o.ErrorBody})
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.StatusCode(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": userMessage(err)})
}
