// Package idempotency implements the bounded, TTL-and-LRU-evicted,
// correlation-id-keyed dedup store from spec §4.7. It shards the keyspace
// across independent, fine-grained-locked partitions so the hot path
// never serializes on one global lock (spec §5), in the spirit of the
// teacher's RedisStore (SETNX-based "first writer wins, others join")
// reimplemented in-memory since the idempotency cache is explicitly
// process-local and volatile by design (spec §1/§9).
package idempotency

import (
	"container/list"
	"context"
	"hash/maphash"
	"sync"
	"time"
)

const shardCount = 64

// Kind distinguishes the three outcomes of BeginOrJoin.
type Kind int

const (
	// Fresh means this call is the first for the id; the caller owns the
	// returned Writer and must eventually call Complete.
	Fresh Kind = iota
	// Joined means another in-flight attempt for this id exists; the
	// caller should Wait on the returned Slot.
	Joined
	// Completed means a terminal outcome is already cached for this id.
	Completed
)

// Outcome is the replayable result of a completed attempt, stored so that
// duplicate requests observe the identical outcome (spec §8,
// "Idempotency" invariant).
type Outcome struct {
	StatusCode int
	Message    string
	ErrorBody  string
}

type entryState int32

const (
	stateInFlight entryState = iota
	stateCompleted
)

type entry struct {
	state     entryState
	outcome   Outcome
	createdAt time.Time
	done      chan struct{}
	mu        sync.Mutex // guards state/outcome; done is closed at most once
}

// Writer is the handle a Fresh caller uses to resolve its slot.
type Writer struct {
	id    string
	entry *entry
	cache *Cache
}

// Complete transitions the slot from InFlight to Completed and wakes every
// waiter blocked in Slot.Wait.
func (w *Writer) Complete(outcome Outcome) {
	w.entry.mu.Lock()
	if w.entry.state == stateCompleted {
		w.entry.mu.Unlock()
		return
	}
	w.entry.outcome = outcome
	w.entry.state = stateCompleted
	w.entry.mu.Unlock()
	close(w.entry.done)

	if m := w.cache.mirror; m != nil {
		m.mirrorComplete(w.id, outcome)
	}
}

// Slot is the result of BeginOrJoin.
type Slot struct {
	Kind    Kind
	Writer  *Writer
	Outcome Outcome

	entry *entry
}

// Wait blocks until a Joined slot's attempt completes or ctx is done. ok is
// false if ctx expired first.
func (s Slot) Wait(ctx context.Context) (outcome Outcome, ok bool) {
	select {
	case <-s.entry.done:
		s.entry.mu.Lock()
		o := s.entry.outcome
		s.entry.mu.Unlock()
		return o, true
	case <-ctx.Done():
		return Outcome{}, false
	}
}

type shard struct {
	mu       sync.Mutex
	byKey    map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int
}

type listItem struct {
	key   string
	entry *entry
}

// Cache is the sharded idempotency store.
type Cache struct {
	shards []*shard
	seed   maphash.Seed
	ttl    time.Duration
	mirror *asyncMirror
}

// New builds a Cache with the given total capacity (divided across shards)
// and per-entry TTL.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity < shardCount {
		capacity = shardCount
	}
	c := &Cache{
		shards: make([]*shard, shardCount),
		seed:   maphash.MakeSeed(),
		ttl:    ttl,
	}
	perShard := capacity / shardCount
	for i := range c.shards {
		c.shards[i] = &shard{
			byKey:    make(map[string]*list.Element, perShard),
			order:    list.New(),
			capacity: perShard,
		}
	}
	return c
}

func (c *Cache) shardFor(id string) *shard {
	var h maphash.Hash
	h.SetSeed(c.seed)
	_, _ = h.WriteString(id)
	return c.shards[h.Sum64()%uint64(len(c.shards))]
}

// BeginOrJoin atomically inserts an InFlight marker for id (returning
// Fresh), joins an existing InFlight attempt (returning Joined), or
// returns the cached terminal outcome (returning Completed).
func (c *Cache) BeginOrJoin(id string) Slot {
	s := c.shardFor(id)
	now := time.Now()

	s.mu.Lock()
	if elem, ok := s.byKey[id]; ok {
		it := elem.Value.(*listItem)
		e := it.entry
		e.mu.Lock()
		expired := e.state == stateCompleted && now.Sub(e.createdAt) > c.ttl
		e.mu.Unlock()
		if expired {
			s.order.Remove(elem)
			delete(s.byKey, id)
		} else {
			s.order.MoveToFront(elem)
			s.mu.Unlock()
			e.mu.Lock()
			if e.state == stateCompleted {
				o := e.outcome
				e.mu.Unlock()
				return Slot{Kind: Completed, Outcome: o}
			}
			e.mu.Unlock()
			return Slot{Kind: Joined, entry: e}
		}
	}

	e := &entry{state: stateInFlight, createdAt: now, done: make(chan struct{})}
	elem := s.order.PushFront(&listItem{key: id, entry: e})
	s.byKey[id] = elem
	s.evictLocked()
	s.mu.Unlock()

	return Slot{Kind: Fresh, Writer: &Writer{id: id, entry: e, cache: c}}
}

// evictLocked drops least-recently-used entries once the shard is over
// capacity. Caller holds s.mu.
func (s *shard) evictLocked() {
	for s.capacity > 0 && len(s.byKey) > s.capacity {
		back := s.order.Back()
		if back == nil {
			return
		}
		it := back.Value.(*listItem)
		s.order.Remove(back)
		delete(s.byKey, it.key)
	}
}

// Sweep removes completed entries whose TTL has elapsed, across all
// shards. Intended to run periodically from a background goroutine
// (cmd/server wires this) so capacity isn't the only bound on memory.
func (c *Cache) Sweep(now time.Time) {
	for _, s := range c.shards {
		s.mu.Lock()
		var next *list.Element
		for elem := s.order.Back(); elem != nil; elem = next {
			next = elem.Prev()
			it := elem.Value.(*listItem)
			it.entry.mu.Lock()
			expired := it.entry.state == stateCompleted && now.Sub(it.entry.createdAt) > c.ttl
			it.entry.mu.Unlock()
			if !expired {
				continue
			}
			s.order.Remove(elem)
			delete(s.byKey, it.key)
		}
		s.mu.Unlock()
	}
}

// Run drives periodic Sweep calls until ctx is cancelled.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			c.Sweep(now)
		}
	}
}

// WithAsyncMirror attaches an optional, fire-and-forget mirror (see
// mirror.go) that completed outcomes are written to out-of-band. It is
// never consulted on the read path.
func (c *Cache) WithAsyncMirror(m *asyncMirror) {
	c.mirror = m
}
