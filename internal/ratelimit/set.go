package ratelimit

import (
	"context"
	"log/slog"
	"sort"

	redis "github.com/redis/go-redis/v9"
)

// Set holds independent limiters by policy name.
type Set struct {
	limiters map[string]Limiter
	client   *redis.Client
}

// NewMemorySet creates one in-memory limiter per policy.
func NewMemorySet(policies ...Policy) *Set {
	s := &Set{limiters: make(map[string]Limiter, len(policies))}
	for _, p := range policies {
		s.limiters[p.Name] = NewMemory(p)
	}
	return s
}

// NewRedisSet creates one Redis limiter per policy. Close releases client.
func NewRedisSet(client *redis.Client, logger *slog.Logger, policies ...Policy) *Set {
	s := &Set{limiters: make(map[string]Limiter, len(policies)), client: client}
	for _, p := range policies {
		s.limiters[p.Name] = NewRedis(client, p, logger)
	}
	return s
}

// Get returns the limiter named name.
func (s *Set) Get(name string) (Limiter, bool) {
	if s == nil {
		return nil, false
	}
	l, ok := s.limiters[name]
	return l, ok
}

// Usage reports key's counters across every limiter, ordered by name.
func (s *Set) Usage(ctx context.Context, key string) []Usage {
	names := make([]string, 0, len(s.limiters))
	for name := range s.limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Usage, 0, len(names))
	for _, name := range names {
		out = append(out, s.limiters[name].Usage(ctx, key))
	}
	return out
}

// Close stops every limiter.
func (s *Set) Close() {
	if s == nil {
		return
	}
	for _, l := range s.limiters {
		l.Close()
	}
	if s.client != nil {
		_ = s.client.Close()
	}
}
