// Package selector implements the stateless upstream-choice policy from
// spec §4.2. It consumes live breaker state and never looks at latency
// history — the hedge is what covers transient slowness.
package selector

import (
	"errors"

	"github.com/kayleemclaren/payment-intermediary/internal/payment"
)

// ErrUnavailable is returned when both upstreams' breakers are open.
var ErrUnavailable = errors.New("selector: both upstreams unavailable")

// Plan names the primary and, optionally, the secondary upstream to
// dispatch a single payment to.
type Plan struct {
	Primary      payment.UpstreamID
	Secondary    payment.UpstreamID
	HasSecondary bool
}

// Choose applies the priority policy:
//
//  1. A closed, B closed -> primary A, secondary B (A preferred — lower fee).
//  2. A closed, B open   -> primary A, no secondary.
//  3. A open,   B closed -> primary B, no secondary.
//  4. A open,   B open   -> ErrUnavailable.
func Choose(defaultClosed, fallbackClosed bool) (Plan, error) {
	switch {
	case defaultClosed && fallbackClosed:
		return Plan{Primary: payment.UpstreamDefault, Secondary: payment.UpstreamFallback, HasSecondary: true}, nil
	case defaultClosed && !fallbackClosed:
		return Plan{Primary: payment.UpstreamDefault}, nil
	case !defaultClosed && fallbackClosed:
		return Plan{Primary: payment.UpstreamFallback}, nil
	default:
		return Plan{}, ErrUnavailable
	}
}
