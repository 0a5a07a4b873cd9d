package search

import (
	"sync"
	"time"
)

// Quota is the pre-flight search budget: a token bucket holding capacity
// tokens, fully refilled once per interval. It guards the provider fan-out,
// not individual HTTP requests.
type Quota struct {
	mu       sync.Mutex
	tokens   int
	capacity int
	refill   time.Duration
	last     time.Time
	now      func() time.Time
}

func NewQuota(capacity int, refill time.Duration) *Quota {
	q := &Quota{
		tokens:   capacity,
		capacity: capacity,
		refill:   refill,
		now:      time.Now,
	}
	q.last = q.now()
	return q
}

func (q *Quota) Allow() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	if now.Sub(q.last) >= q.refill {
		q.tokens = q.capacity
		q.last = now
	}
	if q.tokens <= 0 {
		return false
	}
	q.tokens--
	return true
}

// Remaining reports the tokens left in the current window.
func (q *Quota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.now().Sub(q.last) >= q.refill {
		return q.capacity
	}
	return q.tokens
}
