package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayleemclaren/payment-intermediary/internal/payment"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := NewClient(payment.UpstreamDefault, srv.URL, "/pay", 100*time.Millisecond)
	return c, srv.Close
}

func TestClient_2xxIsSuccess(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	defer closeFn()

	res := c.Pay(context.Background(), []byte(`{}`))
	assert.True(t, res.Success)
	assert.False(t, res.Rejected)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
}

func TestClient_408And429AreFailureNotRejected(t *testing.T) {
	for _, status := range []int{http.StatusRequestTimeout, http.StatusTooManyRequests} {
		c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		res := c.Pay(context.Background(), []byte(`{}`))
		assert.False(t, res.Success)
		assert.False(t, res.Rejected, "status %d must not be classified Rejected", status)
		closeFn()
	}
}

func TestClient_Other4xxIsRejected(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	defer closeFn()

	res := c.Pay(context.Background(), []byte(`{}`))
	assert.False(t, res.Success)
	assert.True(t, res.Rejected)
}

func TestClient_5xxIsFailure(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer closeFn()

	res := c.Pay(context.Background(), []byte(`{}`))
	assert.False(t, res.Success)
	assert.False(t, res.Rejected)
}

func TestClient_ForwardsBodyUnchanged(t *testing.T) {
	const body = `{"correlationId":"abc","amount":1.23}`
	received := make(chan string, 1)

	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, len(body)+16)
		n, _ := r.Body.Read(buf)
		received <- string(buf[:n])
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	res := c.Pay(context.Background(), []byte(body))
	require.True(t, res.Success)
	assert.Equal(t, body, <-received)
}

func TestClient_ContextCancellationYieldsNoStatusCode(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	res := c.Pay(ctx, []byte(`{}`))
	assert.False(t, res.Success)
	assert.Zero(t, res.StatusCode)
	assert.Error(t, res.Err)
}
