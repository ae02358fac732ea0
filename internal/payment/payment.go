// Package payment holds the data types shared across the request path:
// the inbound request shape and the two-member upstream set.
package payment

import (
	"github.com/shopspring/decimal"
)

// UpstreamID names one of the two functionally equivalent processors this
// intermediary forwards to.
type UpstreamID string

const (
	// UpstreamDefault is upstream A, the lower-fee, preferred processor.
	UpstreamDefault UpstreamID = "default"
	// UpstreamFallback is upstream B, used when A is degraded.
	UpstreamFallback UpstreamID = "fallback"
)

// Request is the validated, decoded body of a POST /payments call.
type Request struct {
	CorrelationID string          `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
}
