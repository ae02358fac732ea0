// Package httpapi is the inbound handler from spec §4.1: parse,
// validate, authorize, gate idempotency, dispatch, and the read-only
// audit/health endpoints. Grounded on the teacher's net/http handler
// shape (Aggregator/PayHandler in main.go), rebuilt over go-chi/chi for
// routing (see DESIGN.md) with the spec's exact validation order
// (auth -> body -> idempotency -> dispatch -> ledger -> response).
package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kayleemclaren/payment-intermediary/internal/apperr"
	"github.com/kayleemclaren/payment-intermediary/internal/breaker"
	"github.com/kayleemclaren/payment-intermediary/internal/hedge"
	"github.com/kayleemclaren/payment-intermediary/internal/idempotency"
	"github.com/kayleemclaren/payment-intermediary/internal/ledger"
	"github.com/kayleemclaren/payment-intermediary/internal/metrics"
	"github.com/kayleemclaren/payment-intermediary/internal/payment"
	"github.com/kayleemclaren/payment-intermediary/internal/selector"
)

// Handler wires the five request-path components behind the two HTTP
// operations spec §4.1 names (plus the ambient /healthz and /metrics).
type Handler struct {
	log *zap.Logger

	authHeaderName  string
	authHeaderValue string
	requestTimeout  time.Duration

	cache      *idempotency.Cache
	ledger     *ledger.Ledger
	breakers   map[payment.UpstreamID]*breaker.Breaker
	dispatcher *hedge.Dispatcher
	sem        *semaphore
	metrics    *metrics.Metrics
}

// Config bundles Handler's constructor dependencies.
type Config struct {
	Log             *zap.Logger
	AuthHeaderName  string
	AuthHeaderValue string
	RequestTimeout  time.Duration
	ConcurrencyCap  int

	Cache      *idempotency.Cache
	Ledger     *ledger.Ledger
	Breakers   map[payment.UpstreamID]*breaker.Breaker
	Dispatcher *hedge.Dispatcher
	Metrics    *metrics.Metrics
}

// New builds a Handler.
func New(cfg Config) *Handler {
	return &Handler{
		log:             cfg.Log,
		authHeaderName:  cfg.AuthHeaderName,
		authHeaderValue: cfg.AuthHeaderValue,
		requestTimeout:  cfg.RequestTimeout,
		cache:           cfg.Cache,
		ledger:          cfg.Ledger,
		breakers:        cfg.Breakers,
		dispatcher:      cfg.Dispatcher,
		sem:             newSemaphore(cfg.ConcurrencyCap),
		metrics:         cfg.Metrics,
	}
}

// SubmitPayment implements POST /payments.
func (h *Handler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.RequestDuration.Observe(time.Since(start).Seconds())
	}()

	if !h.sem.tryAcquire() {
		h.recordStatus(http.StatusTooManyRequests)
		writeError(w, apperr.ErrAdmissionRejected)
		return
	}
	defer h.sem.release()

	if !h.checkAuth(r) {
		h.recordStatus(http.StatusUnauthorized)
		writeError(w, apperr.ErrAuthRejected)
		return
	}

	req, raw, err := decodeRequest(w, r)
	if err != nil {
		h.recordStatus(http.StatusBadRequest)
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	slot := h.cache.BeginOrJoin(req.CorrelationID)
	switch slot.Kind {
	case idempotency.Completed:
		h.recordStatus(slot.Outcome.StatusCode)
		writeOutcome(w, slot.Outcome)
		return

	case idempotency.Joined:
		outcome, ok := slot.Wait(ctx)
		if !ok {
			h.recordStatus(http.StatusUnprocessableEntity)
			writeError(w, apperr.ErrUpstreamsUnavailable)
			return
		}
		h.recordStatus(outcome.StatusCode)
		writeOutcome(w, outcome)
		return
	}

	// Fresh: this goroutine owns the attempt.
	outcome := h.process(ctx, req, raw)
	slot.Writer.Complete(outcome)
	h.recordStatus(outcome.StatusCode)
	writeOutcome(w, outcome)
}

// process runs the selector + hedged dispatch + ledger update for a
// freshly admitted (non-duplicate) payment, returning the idempotency
// outcome to cache and return to the caller.
func (h *Handler) process(ctx context.Context, req payment.Request, raw []byte) idempotency.Outcome {
	defaultAllowed := h.breakers[payment.UpstreamDefault].Allow()
	fallbackAllowed := h.breakers[payment.UpstreamFallback].Allow()

	plan, err := selector.Choose(defaultAllowed, fallbackAllowed)
	if err != nil {
		h.log.Warn("upstreams unavailable", zap.String("correlationId", req.CorrelationID))
		return errorOutcome(apperr.ErrUpstreamsUnavailable)
	}

	result, err := h.dispatcher.Dispatch(ctx, raw, plan)
	if err != nil {
		h.log.Warn("payment dispatch failed",
			zap.String("correlationId", req.CorrelationID),
			zap.Error(err),
		)
		return errorOutcome(err)
	}

	// Exactly one winner reaches this line per inbound request: the
	// dispatcher returns on the first success and drains (without
	// returning) any other in-flight attempt, so there is no second
	// caller racing to record this correlation id's amount (spec §9).
	h.ledger.Record(result.Upstream, req.Amount)
	h.metrics.UpstreamCallsTotal.WithLabelValues(string(result.Upstream), "success").Inc()

	h.log.Info("payment processed",
		zap.String("correlationId", req.CorrelationID),
		zap.String("upstream", string(result.Upstream)),
	)

	return successOutcome()
}

func (h *Handler) recordStatus(status int) {
	h.metrics.RequestsTotal.WithLabelValues(statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
