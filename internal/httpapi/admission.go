package httpapi

// semaphore is a bounded counting semaphore implementing the global
// in-flight limit from spec §5: a fixed number of concurrent payment
// handlers, excess requests rejected immediately (no queuing) rather than
// throttled by rate. A buffered channel is the idiomatic Go primitive for
// this — see DESIGN.md for why golang.org/x/time/rate (a token-bucket
// rate limiter) doesn't fit a concurrency cap.
type semaphore struct {
	slots chan struct{}
}

func newSemaphore(limit int) *semaphore {
	return &semaphore{slots: make(chan struct{}, limit)}
}

// tryAcquire returns true if a slot was available, reserving it. The
// caller must call release exactly once if it returns true.
func (s *semaphore) tryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *semaphore) release() {
	<-s.slots
}
