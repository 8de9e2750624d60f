// Package ratelimit throttles app-proxy traffic per (shop, client) key.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Policy struct {
	RPS   float64
	Burst int
}

func (p Policy) normalized() Policy {
	if p.RPS <= 0 {
		p.RPS = 1
	}
	if p.Burst <= 0 {
		p.Burst = 1
	}
	return p
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory keeps one token bucket per key in process. Each warm Lambda container
// has its own buckets, so this is a per-instance limit.
type Memory struct {
	mu       sync.Mutex
	policy   Policy
	visitors map[string]*visitor
	idle     time.Duration
	now      func() time.Time
}

func NewMemory(p Policy) *Memory {
	return &Memory{
		policy:   p.normalized(),
		visitors: map[string]*visitor{},
		idle:     3 * time.Minute,
		now:      time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v, ok := m.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(m.policy.RPS), m.policy.Burst)}
		m.visitors[key] = v
	}
	v.lastSeen = now
	allowed := v.limiter.AllowN(now, 1)

	m.sweep(now)
	return allowed, nil
}

// sweep drops buckets idle longer than m.idle.
func (m *Memory) sweep(now time.Time) {
	for k, v := range m.visitors {
		if now.Sub(v.lastSeen) > m.idle {
			delete(m.visitors, k)
		}
	}
}
