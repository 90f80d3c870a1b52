// Package ratelimit provides the shared request pacer: a single gate every
// outbound fetch passes through, enforcing a minimum jittered delay between
// requests with adaptive backoff when the source starts throttling.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound requests. One instance is shared by every worker;
// all state lives behind its mutex, and the actual waiting is delegated to
// an inner token-bucket limiter retuned whenever the adaptive delay moves.
type Pacer struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	floor    time.Duration
	ceiling  time.Duration
	jitter   time.Duration
	current  time.Duration
	failures int
	rng      *rand.Rand
}

// New creates a pacer starting at the floor delay. Jitter is the upper
// bound of the random addition applied per acquire.
func New(floor, ceiling, jitter time.Duration) *Pacer {
	if floor <= 0 {
		floor = time.Second
	}
	if ceiling < floor {
		ceiling = floor
	}
	return &Pacer{
		limiter: rate.NewLimiter(rate.Every(floor), 1),
		floor:   floor,
		ceiling: ceiling,
		jitter:  jitter,
		current: floor,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Acquire blocks until the next request may be sent, or until ctx is done.
// Safe for any number of concurrent callers; no two callers return less
// than the current delay apart.
func (p *Pacer) Acquire(ctx context.Context) error {
	p.mu.Lock()
	delay := p.current
	if p.jitter > 0 {
		delay += time.Duration(p.rng.Int63n(int64(p.jitter)))
	}
	p.limiter.SetLimit(rate.Every(delay))
	p.mu.Unlock()

	return p.limiter.Wait(ctx)
}

// Success records a non-throttled response: consecutive failures reset and
// the delay decays toward the floor.
func (p *Pacer) Success() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = 0
	p.current = time.Duration(float64(p.current) * 0.9)
	if p.current < p.floor {
		p.current = p.floor
	}
	p.limiter.SetLimit(rate.Every(p.current))
}

// Penalize records a throttling signal (429, 5xx, timeout): the delay
// doubles up to the ceiling and the failure streak grows.
func (p *Pacer) Penalize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures++
	p.current *= 2
	if p.current > p.ceiling {
		p.current = p.ceiling
	}
	p.limiter.SetLimit(rate.Every(p.current))
}

// Delay returns the current adaptive delay.
func (p *Pacer) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Failures returns the current consecutive failure streak.
func (p *Pacer) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}
