// Package ledger implements the per-upstream success tally from spec
// §4.6: a (count, sum) pair per upstream, updated exactly once per
// handler success, readable as an atomic snapshot per upstream (count and
// sum never observed as a torn pair, though the two upstreams' snapshots
// are independent of each other).
package ledger

import (
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/kayleemclaren/payment-intermediary/internal/payment"
)

// Snapshot is an immutable (count, sum) pair for one upstream.
type Snapshot struct {
	Count int64
	Sum   decimal.Decimal
}

type counter struct {
	ptr atomic.Pointer[Snapshot]
}

func newCounter() *counter {
	c := &counter{}
	c.ptr.Store(&Snapshot{Sum: decimal.Zero})
	return c
}

// add folds amount into the counter via a CAS loop, so any reader sees
// either the pre- or post-update snapshot, never a mix of the two fields.
func (c *counter) add(amount decimal.Decimal) {
	for {
		old := c.ptr.Load()
		next := &Snapshot{Count: old.Count + 1, Sum: old.Sum.Add(amount)}
		if c.ptr.CompareAndSwap(old, next) {
			return
		}
	}
}

func (c *counter) load() Snapshot {
	return *c.ptr.Load()
}

// Ledger tracks the two upstreams' running totals.
type Ledger struct {
	counters map[payment.UpstreamID]*counter
}

// New builds an empty Ledger for both known upstreams.
func New() *Ledger {
	return &Ledger{
		counters: map[payment.UpstreamID]*counter{
			payment.UpstreamDefault:  newCounter(),
			payment.UpstreamFallback: newCounter(),
		},
	}
}

// Record folds one confirmed success into upstream's running total. The
// caller (the inbound handler, per spec §4.6 — never the dispatcher) is
// responsible for ensuring this is called at most once per inbound
// request even when hedging produced two upstream successes.
func (l *Ledger) Record(upstream payment.UpstreamID, amount decimal.Decimal) {
	l.counters[upstream].add(amount)
}

// Summary is the atomic-per-upstream snapshot served by GET /payments-summary.
type Summary struct {
	Default  Snapshot
	Fallback Snapshot
}

// Snapshot reads both upstreams' current totals. Each upstream's read is
// atomic; the two reads are independent (spec §4.1).
func (l *Ledger) Snapshot() Summary {
	return Summary{
		Default:  l.counters[payment.UpstreamDefault].load(),
		Fallback: l.counters[payment.UpstreamFallback].load(),
	}
}
