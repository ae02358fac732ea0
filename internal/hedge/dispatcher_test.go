package hedge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayleemclaren/payment-intermediary/internal/apperr"
	"github.com/kayleemclaren/payment-intermediary/internal/breaker"
	"github.com/kayleemclaren/payment-intermediary/internal/payment"
	"github.com/kayleemclaren/payment-intermediary/internal/selector"
	"github.com/kayleemclaren/payment-intermediary/internal/testutil"
	"github.com/kayleemclaren/payment-intermediary/internal/upstream"
)

func newClosedBreakers() map[payment.UpstreamID]*breaker.Breaker {
	return map[payment.UpstreamID]*breaker.Breaker{
		payment.UpstreamDefault:  breaker.New(breaker.Settings{Name: "default", MinSamples: 1000, FailRate: 1, OpenDuration: time.Hour}),
		payment.UpstreamFallback: breaker.New(breaker.Settings{Name: "fallback", MinSamples: 1000, FailRate: 1, OpenDuration: time.Hour}),
	}
}

// neverHedge returns a channel that never fires, so tests that expect the
// primary alone to resolve aren't racing a hedge dispatch.
func neverHedge() <-chan time.Time { return make(chan time.Time) }

// immediateHedge fires at once, forcing the secondary to dispatch as soon
// as Dispatch's select loop reaches it (unless the primary already won).
func immediateHedge() <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func TestDispatch_PrimarySuccessNoSecondary(t *testing.T) {
	a := testutil.NewFakeUpstream(200, 0)
	defer a.Close()

	clients := map[payment.UpstreamID]*upstream.Client{
		payment.UpstreamDefault: upstream.NewClient(payment.UpstreamDefault, a.URL(), "/pay", time.Second),
	}
	breakers := newClosedBreakers()
	d := New(clients, breakers, neverHedge)

	plan := selector.Plan{Primary: payment.UpstreamDefault}
	out, err := d.Dispatch(context.Background(), []byte(`{}`), plan)
	require.NoError(t, err)
	assert.Equal(t, payment.UpstreamDefault, out.Upstream)
	assert.EqualValues(t, 1, a.Calls())
}

func TestDispatch_HedgeFiresWhenPrimarySlow(t *testing.T) {
	a := testutil.NewFakeUpstream(200, 100*time.Millisecond)
	b := testutil.NewFakeUpstream(200, 0)
	defer a.Close()
	defer b.Close()

	clients := map[payment.UpstreamID]*upstream.Client{
		payment.UpstreamDefault:  upstream.NewClient(payment.UpstreamDefault, a.URL(), "/pay", time.Second),
		payment.UpstreamFallback: upstream.NewClient(payment.UpstreamFallback, b.URL(), "/pay", time.Second),
	}
	breakers := newClosedBreakers()
	d := New(clients, breakers, immediateHedge)

	plan := selector.Plan{Primary: payment.UpstreamDefault, Secondary: payment.UpstreamFallback, HasSecondary: true}
	out, err := d.Dispatch(context.Background(), []byte(`{}`), plan)
	require.NoError(t, err)
	assert.Equal(t, payment.UpstreamFallback, out.Upstream)

	// The slow primary eventually resolves in the background; give the
	// drain goroutine a moment to record it before asserting call counts.
	time.Sleep(150 * time.Millisecond)
	assert.EqualValues(t, 1, a.Calls())
	assert.EqualValues(t, 1, b.Calls())
}

func TestDispatch_PrimaryFailureBeforeHedgeDoesNotDispatchSecondary(t *testing.T) {
	a := testutil.NewFakeUpstream(502, 0)
	b := testutil.NewFakeUpstream(200, 0)
	defer a.Close()
	defer b.Close()

	clients := map[payment.UpstreamID]*upstream.Client{
		payment.UpstreamDefault:  upstream.NewClient(payment.UpstreamDefault, a.URL(), "/pay", time.Second),
		payment.UpstreamFallback: upstream.NewClient(payment.UpstreamFallback, b.URL(), "/pay", time.Second),
	}
	breakers := newClosedBreakers()
	d := New(clients, breakers, neverHedge)

	plan := selector.Plan{Primary: payment.UpstreamDefault, Secondary: payment.UpstreamFallback, HasSecondary: true}
	_, err := d.Dispatch(context.Background(), []byte(`{}`), plan)
	assert.Error(t, err)
	assert.Zero(t, b.Calls(), "a failed primary must not trigger an immediate secondary attempt")
}

func TestDispatch_BothFailReturnsUpstreamsUnavailable(t *testing.T) {
	a := testutil.NewFakeUpstream(502, 0)
	b := testutil.NewFakeUpstream(502, 0)
	defer a.Close()
	defer b.Close()

	clients := map[payment.UpstreamID]*upstream.Client{
		payment.UpstreamDefault:  upstream.NewClient(payment.UpstreamDefault, a.URL(), "/pay", time.Second),
		payment.UpstreamFallback: upstream.NewClient(payment.UpstreamFallback, b.URL(), "/pay", time.Second),
	}
	breakers := newClosedBreakers()
	d := New(clients, breakers, immediateHedge)

	plan := selector.Plan{Primary: payment.UpstreamDefault, Secondary: payment.UpstreamFallback, HasSecondary: true}
	_, err := d.Dispatch(context.Background(), []byte(`{}`), plan)
	assert.ErrorIs(t, err, apperr.ErrUpstreamsUnavailable)
}

func TestDispatch_EveryOutcomeFeedsItsBreakerEvenWhenNotTheWinner(t *testing.T) {
	a := testutil.NewFakeUpstream(200, 100*time.Millisecond)
	b := testutil.NewFakeUpstream(502, 0)
	defer a.Close()
	defer b.Close()

	clients := map[payment.UpstreamID]*upstream.Client{
		payment.UpstreamDefault:  upstream.NewClient(payment.UpstreamDefault, a.URL(), "/pay", time.Second),
		payment.UpstreamFallback: upstream.NewClient(payment.UpstreamFallback, b.URL(), "/pay", time.Second),
	}
	breakers := newClosedBreakers()
	// A single recorded failure trips this breaker, so its state shows
	// whether the losing attempt's outcome was fed to it.
	breakers[payment.UpstreamFallback] = breaker.New(breaker.Settings{Name: "fallback", MinSamples: 1, FailRate: 1, OpenDuration: time.Hour})
	d := New(clients, breakers, immediateHedge)

	plan := selector.Plan{Primary: payment.UpstreamFallback, Secondary: payment.UpstreamDefault, HasSecondary: true}
	// Fallback (b) fails immediately; hedge fires at once and dispatches
	// default (a), which succeeds 100ms later and wins.
	out, err := d.Dispatch(context.Background(), []byte(`{}`), plan)
	require.NoError(t, err)
	assert.Equal(t, payment.UpstreamDefault, out.Upstream)
	assert.Equal(t, breaker.Open, breakers[payment.UpstreamFallback].State(), "the losing fallback's failure must reach its breaker")
}

func TestDispatch_SecondaryNotDispatchedIfItsBreakerIsOpen(t *testing.T) {
	a := testutil.NewFakeUpstream(200, 100*time.Millisecond)
	b := testutil.NewFakeUpstream(200, 0)
	defer a.Close()
	defer b.Close()

	clients := map[payment.UpstreamID]*upstream.Client{
		payment.UpstreamDefault:  upstream.NewClient(payment.UpstreamDefault, a.URL(), "/pay", time.Second),
		payment.UpstreamFallback: upstream.NewClient(payment.UpstreamFallback, b.URL(), "/pay", time.Second),
	}
	breakers := newClosedBreakers()
	for i := 0; i < 1000; i++ {
		breakers[payment.UpstreamFallback].Record(false)
	}
	require.Equal(t, breaker.Open, breakers[payment.UpstreamFallback].State())

	d := New(clients, breakers, immediateHedge)
	plan := selector.Plan{Primary: payment.UpstreamDefault, Secondary: payment.UpstreamFallback, HasSecondary: true}

	out, err := d.Dispatch(context.Background(), []byte(`{}`), plan)
	require.NoError(t, err)
	assert.Equal(t, payment.UpstreamDefault, out.Upstream)
	assert.Zero(t, b.Calls())
}

func TestDispatch_ContextDeadlineReturnsUpstreamsUnavailable(t *testing.T) {
	a := testutil.NewFakeUpstream(200, 200*time.Millisecond)
	defer a.Close()

	clients := map[payment.UpstreamID]*upstream.Client{
		payment.UpstreamDefault: upstream.NewClient(payment.UpstreamDefault, a.URL(), "/pay", time.Second),
	}
	breakers := newClosedBreakers()
	d := New(clients, breakers, neverHedge)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	plan := selector.Plan{Primary: payment.UpstreamDefault}
	_, err := d.Dispatch(ctx, []byte(`{}`), plan)
	assert.ErrorIs(t, err, apperr.ErrUpstreamsUnavailable)
}
