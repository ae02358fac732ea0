package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kayleemclaren/payment-intermediary/internal/apperr"
	"github.com/kayleemclaren/payment-intermediary/internal/payment"
)

// maxBodyBytes bounds the inbound body; nothing within this engine's
// sub-100ms budget should ever need a body anywhere near this large.
const maxBodyBytes = 64 * 1024

type rawPaymentRequest struct {
	CorrelationID *string      `json:"correlationId"`
	Amount        *json.Number `json:"amount"`
}

// decodeRequest parses and validates the inbound body per spec §4.1 and
// §3. It returns both the typed Request and the original raw bytes, since
// those bytes — not a re-marshaled copy — are what gets forwarded
// unchanged to the chosen upstream (spec §6, "Outbound").
func decodeRequest(w http.ResponseWriter, r *http.Request) (payment.Request, []byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return payment.Request{}, nil, apperr.ErrMalformedRequest
	}

	var parsed rawPaymentRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return payment.Request{}, nil, apperr.ErrMalformedRequest
	}

	if parsed.CorrelationID == nil || *parsed.CorrelationID == "" {
		return payment.Request{}, nil, apperr.ErrMalformedRequest
	}
	if parsed.Amount == nil {
		return payment.Request{}, nil, apperr.ErrMalformedRequest
	}

	amount, err := decimal.NewFromString(parsed.Amount.String())
	if err != nil {
		return payment.Request{}, nil, apperr.ErrMalformedRequest
	}
	if amount.IsNegative() {
		return payment.Request{}, nil, apperr.ErrMalformedRequest
	}
	// "two fractional digits of significance" (spec §3): reject rather
	// than silently round anything more precise (see SPEC_FULL.md §12).
	if amount.Exponent() < -2 {
		return payment.Request{}, nil, apperr.ErrMalformedRequest
	}

	return payment.Request{CorrelationID: *parsed.CorrelationID, Amount: amount}, raw, nil
}
