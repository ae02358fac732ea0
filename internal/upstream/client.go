// Package upstream implements the HTTP client that speaks to one payment
// processor and classifies its response per spec §4.5. Connection pooling
// follows the keep-alive tuning in lucas-de-lima-rinha-de-backend-2025's
// BRUTOConnectionPool (bounded idle connections, disabled compression, a
// tight dial timeout) generalized into a reusable per-upstream client
// instead of a round-robin pool of identical clients.
package upstream

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kayleemclaren/payment-intermediary/internal/payment"
)

// Result is the classified outcome of a single attempt against one
// upstream.
type Result struct {
	Upstream payment.UpstreamID
	// Success is true only for HTTP 2xx.
	Success bool
	// Rejected is true when the upstream returned a 4xx other than 408 or
	// 429 — the processor explicitly refused the payment. Rejected
	// implies !Success; breaker accounting still treats it as a failure
	// (spec §4.5), but the handler reports it distinctly (422, "upstream
	// rejected") rather than as a generic timeout/unavailable failure.
	Rejected bool
	// StatusCode is the upstream's HTTP status, or 0 if no response was
	// ever received (connection error, timeout, context cancellation).
	StatusCode int
	Err        error
}

// Client performs POSTs against one upstream processor.
type Client struct {
	upstream payment.UpstreamID
	url      string
	http     *http.Client
}

// NewClient builds a Client with a pooled, keep-alive transport sized for
// high-concurrency, sub-100ms traffic.
func NewClient(id payment.UpstreamID, baseURL, payPath string, timeout time.Duration) *Client {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        2048,
		MaxIdleConnsPerHost: 2048,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
		// Go's *net.TCPConn already disables Nagle's algorithm by default
		// (TCP_NODELAY set on every dialed connection), satisfying spec
		// §4.5's connection-pool requirement without extra syscalls here.
	}
	return &Client{
		upstream: id,
		url:      strings.TrimRight(baseURL, "/") + payPath,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Pay forwards body (the inbound request, unchanged) to this upstream and
// classifies the result. Retries are disabled here by design — the hedge
// policy in internal/hedge owns the one permitted extra attempt.
func (c *Client) Pay(ctx context.Context, body []byte) Result {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{Upstream: c.upstream, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{Upstream: c.upstream, Err: err}
	}
	defer resp.Body.Close()
	// Drain the body so the connection returns to the idle pool.
	_, _ = io.Copy(io.Discard, resp.Body)

	return classify(c.upstream, resp.StatusCode)
}

func classify(upstream payment.UpstreamID, status int) Result {
	switch {
	case status >= 200 && status < 300:
		return Result{Upstream: upstream, Success: true, StatusCode: status}
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return Result{Upstream: upstream, StatusCode: status}
	case status >= 400 && status < 500:
		return Result{Upstream: upstream, Rejected: true, StatusCode: status}
	default:
		// 5xx and anything unexpected: failure for breaker accounting.
		return Result{Upstream: upstream, StatusCode: status}
	}
}
