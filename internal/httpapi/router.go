package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kayleemclaren/payment-intermediary/internal/metrics"
)

// NewRouter builds the full HTTP surface from spec §6. A panic inside any
// handler is recovered at the request boundary and reported as 500 (spec
// §7, "no error bubbles unclassified to the response"), via chi's
// standard Recoverer middleware.
func NewRouter(h *Handler, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/payments", h.SubmitPayment)
	r.Get("/payments-summary", h.Summary)
	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	return r
}
