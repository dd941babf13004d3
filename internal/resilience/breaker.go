package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrBreakerOpen is returned when a call is rejected without being attempted.
var ErrBreakerOpen = eris.New("resilience: breaker open")

// Breaker is a minimal circuit breaker: after Threshold consecutive failures
// it rejects calls for Cooldown, then lets a single probe through. The live
// enrichment path shares one Breaker across all concurrent posts so a
// systemically failing provider is not hammered once per post.
type Breaker struct {
	Threshold int
	Cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
}

// NewBreaker returns a Breaker; threshold <= 0 defaults to 5, cooldown <= 0
// defaults to 30s.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{Threshold: threshold, Cooldown: cooldown}
}

// Allow reports whether a call may proceed right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.Threshold {
		return true
	}
	if time.Since(b.openedAt) >= b.Cooldown {
		// Half-open: allow one probe by decrementing below the threshold.
		b.failures = b.Threshold - 1
		return true
	}
	return false
}

// Record updates the breaker with the outcome of a call.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures == b.Threshold {
		b.openedAt = time.Now()
	}
}
