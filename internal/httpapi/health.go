package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/kayleemclaren/payment-intermediary/internal/payment"
)

type healthResponse struct {
	Status   string            `json:"status"`
	Breakers map[string]string `json:"breakers"`
}

// Healthz implements GET /healthz. The spec (§6) only requires a bare 200;
// this repo additionally reports each breaker's state as a read-only
// diagnostic (SPEC_FULL.md §12) — never consulted for routing, which
// stays entirely inside internal/selector.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Breakers: map[string]string{
			string(payment.UpstreamDefault):  h.breakers[payment.UpstreamDefault].State().String(),
			string(payment.UpstreamFallback): h.breakers[payment.UpstreamFallback].State().String(),
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
