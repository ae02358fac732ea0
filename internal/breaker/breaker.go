// Package breaker implements the per-upstream circuit breaker described in
// spec §4.3: a Closed/Open (no half-open) state machine over a
// lock-free, approximately-accounted rolling window of outcomes.
//
// The teacher (KayleeMcLaren-containerized-payment-aggregator) wraps
// github.com/sony/gobreaker directly. gobreaker's state machine always
// includes an explicit half-open phase gated by a mutex-protected counter
// generation, which this spec's invariant (i) rules out ("there is no
// separate half-open state") and whose internal locking conflicts with
// invariant (iii) ("lock-free atomics... a sample that successfully
// CAS-updates the counter must be observed in every subsequent rate
// calculation"). There's no SPEC_FULL.md component that can exercise
// gobreaker's actual state machine without violating those invariants, so
// it's dropped here (see DESIGN.md) in favor of a small atomics-based
// breaker built in the teacher's manner: a named, per-upstream gate type
// with an explicit Settings struct, mirroring gobreaker's own
// Settings/ReadyToTrip naming so the shape stays familiar.
package breaker

import (
	"sync/atomic"
	"time"
)

// State is one of the two states a breaker can be in.
type State int32

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

const (
	slotEmpty int32 = iota
	slotSuccess
	slotFailure
)

// Counts is a snapshot of a breaker's current window, handed to state
// listeners on transition.
type Counts struct {
	Requests      uint32
	TotalFailures uint32
}

// StateChangeEvent describes one Closed<->Open transition.
type StateChangeEvent struct {
	Name   string
	From   State
	To     State
	Counts Counts
}

// StateListener is notified on every state transition. Implementations
// must not block — they're invoked on the hot path.
type StateListener interface {
	OnCircuitBreakerStateChange(event StateChangeEvent)
}

// Settings configures a Breaker, named in the style of gobreaker.Settings
// since it covers the same concern (failure-rate trip policy) even though
// the underlying mechanism no longer is gobreaker.
type Settings struct {
	Name string

	// MinSamples is the window fill required before a trip can occur
	// (CB_MIN_SAMPLES). Also used, if larger than 50, as the window size.
	MinSamples int
	// FailRate is the failure fraction, inclusive, that trips the breaker
	// (CB_FAIL_RATE). Evaluated with >=.
	FailRate float64
	// OpenDuration is how long the breaker stays Open before the next
	// allow() call is treated as a probe (CB_OPEN_SECS).
	OpenDuration time.Duration

	Listener StateListener
}

// Breaker is a single upstream's circuit breaker.
type Breaker struct {
	name         string
	minSamples   int64
	failRate     float64
	openDuration time.Duration
	listener     StateListener

	state    atomic.Int32
	openedAt atomic.Int64 // UnixNano; valid only while state == Open

	slots     []atomic.Int32
	size      uint64
	cursor    atomic.Uint64
	count     atomic.Int64
	failures  atomic.Int64
	successes atomic.Int64
}

// New constructs a Breaker starting Closed.
func New(settings Settings) *Breaker {
	size := settings.MinSamples
	if size < 50 {
		size = 50
	}
	b := &Breaker{
		name:         settings.Name,
		minSamples:   int64(settings.MinSamples),
		failRate:     settings.FailRate,
		openDuration: settings.OpenDuration,
		listener:     settings.Listener,
		slots:        make([]atomic.Int32, size),
		size:         uint64(size),
	}
	return b
}

// Allow reports whether a request may be dispatched to this upstream right
// now. Calling Allow when the open duration has just elapsed performs the
// Open->Closed transition and resets the window; the caller's own request
// becomes the probe per spec §4.3 (no separate half-open state).
func (b *Breaker) Allow() bool {
	if State(b.state.Load()) == Closed {
		return true
	}

	openedAt := b.openedAt.Load()
	if time.Since(time.Unix(0, openedAt)) < b.openDuration {
		return false
	}

	if b.state.CompareAndSwap(int32(Open), int32(Closed)) {
		b.resetWindow()
		b.notify(Open, Closed)
	}
	// Whether this goroutine won the CAS or another one already flipped
	// the state, the duration has elapsed: admit the request.
	return true
}

// Record feeds one upstream outcome into the rolling window and evaluates
// the trip condition if the breaker is currently Closed.
func (b *Breaker) Record(success bool) {
	idx := b.cursor.Add(1) - 1
	slot := &b.slots[idx%b.size]

	var newVal int32 = slotFailure
	if success {
		newVal = slotSuccess
	}
	old := slot.Swap(newVal)

	switch old {
	case slotEmpty:
		b.count.Add(1)
		if success {
			b.successes.Add(1)
		} else {
			b.failures.Add(1)
		}
	case slotSuccess:
		if !success {
			b.successes.Add(-1)
			b.failures.Add(1)
		}
	case slotFailure:
		if success {
			b.failures.Add(-1)
			b.successes.Add(1)
		}
	}

	if State(b.state.Load()) != Closed {
		return
	}

	count := b.count.Load()
	if count < b.minSamples {
		return
	}
	failures := b.failures.Load()
	rate := float64(failures) / float64(count)
	if rate >= b.failRate {
		if b.state.CompareAndSwap(int32(Closed), int32(Open)) {
			b.openedAt.Store(time.Now().UnixNano())
			b.notify(Closed, Open)
		}
	}
}

// State returns the breaker's current state, for diagnostics (/healthz).
func (b *Breaker) State() State {
	return State(b.state.Load())
}

func (b *Breaker) resetWindow() {
	for i := range b.slots {
		b.slots[i].Store(slotEmpty)
	}
	b.count.Store(0)
	b.failures.Store(0)
	b.successes.Store(0)
}

func (b *Breaker) notify(from, to State) {
	if b.listener == nil {
		return
	}
	b.listener.OnCircuitBreakerStateChange(StateChangeEvent{
		Name: b.name,
		From: from,
		To:   to,
		Counts: Counts{
			Requests:      uint32(b.count.Load()),
			TotalFailures: uint32(b.failures.Load()),
		},
	})
}
