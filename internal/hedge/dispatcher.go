// Package hedge implements the hedged-retry protocol from spec §4.4: a
// single-try dispatch to the primary, a delayed duplicate to the
// secondary if the primary hasn't resolved by the hedge delay, first
// positive outcome wins, every outcome (winner or not) still feeds its
// upstream's breaker.
//
// Grounded on lucas-de-lima-rinha-de-backend-2025's
// payment-orchestrator, which races goroutines over a buffered channel
// and takes the first value — the same shape, but rebuilt so cancellation
// is real (the loser's context.Context is actually cancelled, per the
// conservative choice recorded for the hedge-cancellation Open Question
// in DESIGN.md) and so the loser's outcome is never lost: it's drained by
// a background goroutine and recorded to its breaker even after the
// winning response has already gone out.
package hedge

import (
	"context"
	"time"

	"github.com/kayleemclaren/payment-intermediary/internal/apperr"
	"github.com/kayleemclaren/payment-intermediary/internal/breaker"
	"github.com/kayleemclaren/payment-intermediary/internal/payment"
	"github.com/kayleemclaren/payment-intermediary/internal/selector"
	"github.com/kayleemclaren/payment-intermediary/internal/upstream"
)

// Outcome is the winning attempt's result.
type Outcome struct {
	Upstream payment.UpstreamID
}

// Dispatcher runs the hedge protocol across both upstream clients.
type Dispatcher struct {
	clients    map[payment.UpstreamID]*upstream.Client
	breakers   map[payment.UpstreamID]*breaker.Breaker
	hedgeDelay func() <-chan time.Time
}

// New builds a Dispatcher. hedgeDelay is invoked once per Dispatch call and
// must return a channel that fires after the configured hedge delay —
// injected as a func (normally time.After-backed, see cmd/server) so tests
// can control timing deterministically.
func New(clients map[payment.UpstreamID]*upstream.Client, breakers map[payment.UpstreamID]*breaker.Breaker, hedgeDelay func() <-chan time.Time) *Dispatcher {
	return &Dispatcher{clients: clients, breakers: breakers, hedgeDelay: hedgeDelay}
}

// Dispatch runs plan against rawBody, honoring ctx's deadline as both the
// overall budget and (by inheritance) each attempt's individual timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, rawBody []byte, plan selector.Plan) (Outcome, error) {
	resultCh := make(chan upstream.Result, 2)
	cancels := make(map[payment.UpstreamID]context.CancelFunc, 2)

	dispatch := func(id payment.UpstreamID) {
		attemptCtx, cancel := context.WithCancel(ctx)
		cancels[id] = cancel
		go func() {
			resultCh <- d.clients[id].Pay(attemptCtx, rawBody)
		}()
	}

	dispatch(plan.Primary)
	dispatched := 1
	primaryDone := false

	var hedgeCh <-chan time.Time
	if plan.HasSecondary {
		hedgeCh = d.hedgeDelay()
	}

	anyRejected := false

	for {
		select {
		case res := <-resultCh:
			dispatched--
			if res.Upstream == plan.Primary {
				primaryDone = true
			}
			d.record(res)

			if res.Success {
				if dispatched > 0 {
					go d.drainRemaining(resultCh, dispatched)
				}
				d.cancelExcept(cancels, res.Upstream)
				return Outcome{Upstream: res.Upstream}, nil
			}
			anyRejected = anyRejected || res.Rejected
			if dispatched == 0 {
				return Outcome{}, classifyFailure(anyRejected)
			}

		case <-hedgeCh:
			hedgeCh = nil
			if !primaryDone && d.breakers[plan.Secondary].Allow() {
				dispatch(plan.Secondary)
				dispatched++
			}

		case <-ctx.Done():
			if dispatched > 0 {
				go d.drainRemaining(resultCh, dispatched)
			}
			return Outcome{}, apperr.ErrUpstreamsUnavailable
		}
	}
}

func (d *Dispatcher) record(res upstream.Result) {
	d.breakers[res.Upstream].Record(res.Success)
}

// drainRemaining waits for the n attempts still outstanding after Dispatch
// has already returned, so their outcomes still reach the breaker (spec
// §4.4: "every outcome from both attempts is fed to the respective
// breaker, whether counted in the ledger or not") without holding up the
// response that already has a winner.
func (d *Dispatcher) drainRemaining(resultCh <-chan upstream.Result, n int) {
	for i := 0; i < n; i++ {
		d.record(<-resultCh)
	}
}

func (d *Dispatcher) cancelExcept(cancels map[payment.UpstreamID]context.CancelFunc, keep payment.UpstreamID) {
	for id, cancel := range cancels {
		if id != keep {
			cancel()
		}
	}
}

func classifyFailure(anyRejected bool) error {
	if anyRejected {
		return apperr.ErrUpstreamRejected
	}
	return apperr.ErrUpstreamsUnavailable
}
