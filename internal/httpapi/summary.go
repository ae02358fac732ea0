package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kayleemclaren/payment-intermediary/internal/ledger"
)

// amountJSON marshals a decimal.Decimal as a bare JSON number (not a
// quoted string, which is shopspring/decimal's own default), matching
// spec §6's `{"total_amount": number}` wire shape exactly.
type amountJSON decimal.Decimal

func (a amountJSON) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).StringFixed(2)), nil
}

type upstreamSummary struct {
	TotalRequests int64      `json:"total_requests"`
	TotalAmount   amountJSON `json:"total_amount"`
}

type summaryResponse struct {
	Default  upstreamSummary `json:"default"`
	Fallback upstreamSummary `json:"fallback"`
}

// Summary implements GET /payments-summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	snap := h.ledgerSnapshot()
	resp := summaryResponse{
		Default:  toSummary(snap.Default),
		Fallback: toSummary(snap.Fallback),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) ledgerSnapshot() ledger.Summary {
	return h.ledger.Snapshot()
}

func toSummary(s ledger.Snapshot) upstreamSummary {
	return upstreamSummary{TotalRequests: s.Count, TotalAmount: amountJSON(s.Sum)}
}
