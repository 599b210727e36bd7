// Package ratelimit implements named fixed-window request limiters keyed by
// caller identity.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// SweepInterval is how often expired in-memory counters are dropped.
const SweepInterval = 5 * time.Minute

// Policy configures one named limiter.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Named policies guarding the public API.
var (
	CommentaryRequest = Policy{Name: "commentary_request", Limit: 2, Window: 10 * time.Minute}
	GeneralAPI        = Policy{Name: "general_api", Limit: 60, Window: time.Minute}
	ConfigRead        = Policy{Name: "config_read", Limit: 10, Window: time.Minute}
)

// DefaultPolicies lists the policies wired into the API.
func DefaultPolicies() []Policy {
	return []Policy{CommentaryRequest, GeneralAPI, ConfigRead}
}

// Decision is the outcome of one Allow call. RetryAfter is only set on
// denials.
type Decision struct {
	Allowed    bool
	Count      int
	Limit      int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Remaining is the number of requests left in the window.
func (d Decision) Remaining() int {
	if d.Limit <= 0 {
		return 0
	}
	return max(d.Limit-d.Count, 0)
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (d Decision) RetryAfterSeconds() int {
	return ceilSeconds(d.RetryAfter)
}

// Usage is a read-only view of an identity's counter.
type Usage struct {
	Limiter   string     `json:"limiter"`
	Count     int        `json:"count"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	ResetAt   *time.Time `json:"resetAt,omitempty"`
	WindowMS  int64      `json:"windowMs"`
}

// Limiter is a single named fixed-window counter space.
type Limiter interface {
	Policy() Policy
	Allow(ctx context.Context, key string) Decision
	Usage(ctx context.Context, key string) Usage
	Close()
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func normalise(p Policy) Policy {
	if p.Window <= 0 {
		p.Window = time.Minute
	}
	return p
}
