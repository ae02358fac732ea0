package idempotency

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// asyncMirror writes completed outcomes to Redis out-of-band, for
// operational visibility only (e.g. a future reconciliation job). It is
// never read from on the request path — see SPEC_FULL.md §11. Grounded on
// the teacher's cache.RedisStore, repurposed from "the" store to an
// optional write-behind side-channel.
type asyncMirror struct {
	client *redis.Client
	log    *zap.Logger
	ttl    time.Duration

	jobs chan mirrorJob
}

type mirrorJob struct {
	id      string
	outcome Outcome
}

// NewAsyncMirror builds a bounded background writer against client; the
// caller starts it with Run. Writes that can't be enqueued immediately (a
// saturated buffer) are dropped — this path never blocks or affects
// request latency.
func NewAsyncMirror(client *redis.Client, log *zap.Logger, ttl time.Duration) *asyncMirror {
	m := &asyncMirror{
		client: client,
		log:    log,
		ttl:    ttl,
		jobs:   make(chan mirrorJob, 4096),
	}
	return m
}

// Run drains the write queue until ctx is cancelled.
func (m *asyncMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.jobs:
			m.write(ctx, job)
		}
	}
}

func (m *asyncMirror) mirrorComplete(id string, outcome Outcome) {
	select {
	case m.jobs <- mirrorJob{id: id, outcome: outcome}:
	default:
		// Buffer full: this is a best-effort side channel, drop silently.
	}
}

func (m *asyncMirror) write(ctx context.Context, job mirrorJob) {
	writeCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	key := "idempotency-mirror:" + job.id
	val := strconv.Itoa(job.outcome.StatusCode) + "|" + job.outcome.Message
	if err := m.client.Set(writeCtx, key, val, m.ttl).Err(); err != nil {
		m.log.Warn("idempotency mirror write failed", zap.String("correlationId", job.id), zap.Error(err))
	}
}
