package ledger

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kayleemclaren/payment-intermediary/internal/payment"
)

func TestLedger_StartsAtZero(t *testing.T) {
	l := New()
	snap := l.Snapshot()
	assert.Zero(t, snap.Default.Count)
	assert.True(t, snap.Default.Sum.Equal(decimal.Zero))
	assert.Zero(t, snap.Fallback.Count)
	assert.True(t, snap.Fallback.Sum.Equal(decimal.Zero))
}

func TestLedger_RecordAccumulatesPerUpstream(t *testing.T) {
	l := New()
	l.Record(payment.UpstreamDefault, decimal.NewFromFloat(10.50))
	l.Record(payment.UpstreamDefault, decimal.NewFromFloat(4.25))
	l.Record(payment.UpstreamFallback, decimal.NewFromFloat(1.00))

	snap := l.Snapshot()
	assert.EqualValues(t, 2, snap.Default.Count)
	assert.True(t, snap.Default.Sum.Equal(decimal.NewFromFloat(14.75)), "got %s", snap.Default.Sum)
	assert.EqualValues(t, 1, snap.Fallback.Count)
	assert.True(t, snap.Fallback.Sum.Equal(decimal.NewFromFloat(1.00)))
}

func TestLedger_ConcurrentRecordsAreNotLost(t *testing.T) {
	l := New()
	const n = 500

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			l.Record(payment.UpstreamDefault, decimal.NewFromInt(1))
		}()
	}
	wg.Wait()

	snap := l.Snapshot()
	assert.EqualValues(t, n, snap.Default.Count)
	assert.True(t, snap.Default.Sum.Equal(decimal.NewFromInt(n)))
}
