package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count   int
	resetAt time.Time
}

// Memory is a process-local limiter. Windows roll over lazily on the next
// request; a background sweep drops expired counters.
type Memory struct {
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]counter

	stopCh chan struct{}
	once   sync.Once
}

// NewMemory starts a limiter and its sweep loop. Call Close to stop it.
func NewMemory(policy Policy) *Memory {
	m := newMemory(policy, time.Now)
	go m.sweepLoop(SweepInterval)
	return m
}

func newMemory(policy Policy, now func() time.Time) *Memory {
	return &Memory{
		policy:   normalise(policy),
		now:      now,
		counters: make(map[string]counter),
		stopCh:   make(chan struct{}),
	}
}

// Policy returns the limiter configuration.
func (m *Memory) Policy() Policy {
	return m.policy
}

// Allow counts a request for key.
func (m *Memory) Allow(ctx context.Context, key string) Decision {
	if m.policy.Limit <= 0 {
		return Decision{Allowed: true}
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.counters[key]
	if !ok || !now.Before(state.resetAt) {
		state = counter{count: 1, resetAt: now.Add(m.policy.Window)}
		m.counters[key] = state
		return Decision{Allowed: true, Count: 1, Limit: m.policy.Limit, ResetAt: state.resetAt}
	}
	state.count++
	m.counters[key] = state
	decision := Decision{Count: state.count, Limit: m.policy.Limit, ResetAt: state.resetAt}
	if state.count > m.policy.Limit {
		decision.RetryAfter = state.resetAt.Sub(now)
		return decision
	}
	decision.Allowed = true
	return decision
}

// Usage reports the counter for key without counting a request.
func (m *Memory) Usage(ctx context.Context, key string) Usage {
	usage := Usage{Limiter: m.policy.Name, Limit: m.policy.Limit, Remaining: m.policy.Limit, WindowMS: m.policy.Window.Milliseconds()}
	now := m.now()
	m.mu.Lock()
	state, ok := m.counters[key]
	m.mu.Unlock()
	if !ok || !now.Before(state.resetAt) {
		return usage
	}
	usage.Count = state.count
	usage.Remaining = max(m.policy.Limit-state.count, 0)
	reset := state.resetAt
	usage.ResetAt = &reset
	return usage
}

// Len returns the number of tracked identities.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}

func (m *Memory) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanup(m.now())
		case <-m.stopCh:
			return
		}
	}
}

func (m *Memory) cleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, state := range m.counters {
		if !now.Before(state.resetAt) {
			delete(m.counters, key)
		}
	}
}

// Close stops the sweep loop.
func (m *Memory) Close() {
	m.once.Do(func() {
		close(m.stopCh)
	})
}
