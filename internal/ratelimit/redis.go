package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "izzocam:ratelimit:"

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Redis is a fixed-window limiter shared by every process using the same
// Redis database. Redis failures allow the request.
type Redis struct {
	client  *redis.Client
	policy  Policy
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewRedis builds a limiter for policy on client. The client is owned by the
// caller.
func NewRedis(client *redis.Client, policy Policy, logger *slog.Logger) *Redis {
	policy = normalise(policy)
	return &Redis{
		client:  client,
		policy:  policy,
		prefix:  redisKeyPrefix + policy.Name + ":",
		timeout: 250 * time.Millisecond,
		logger:  logger,
		now:     time.Now,
	}
}

// Policy returns the limiter configuration.
func (rl *Redis) Policy() Policy {
	return rl.policy
}

// Allow counts a request for key.
func (rl *Redis) Allow(ctx context.Context, key string) Decision {
	if rl.policy.Limit <= 0 {
		return Decision{Allowed: true}
	}
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.logRedisError("incr", err)
		return Decision{Allowed: true, Limit: rl.policy.Limit}
	}
	if count == 1 {
		if err := rl.client.PExpire(ctx, redisKey, rl.policy.Window).Err(); err != nil {
			rl.logRedisError("pexpire", err)
		}
	}
	ttl, repair := remainingWindow(rl.client.PTTL(ctx, redisKey).Result())
	if repair {
		// A counter without expiry would never reset, e.g. after a failed
		// PEXPIRE on the first increment.
		if err := rl.client.PExpire(ctx, redisKey, rl.policy.Window).Err(); err != nil {
			rl.logRedisError("pexpire", err)
		}
	}
	if ttl <= 0 {
		ttl = rl.policy.Window
	}
	decision := Decision{
		Allowed: int(count) <= rl.policy.Limit,
		Count:   int(count),
		Limit:   rl.policy.Limit,
		ResetAt: rl.now().Add(ttl),
	}
	if !decision.Allowed {
		decision.RetryAfter = ttl
	}
	return decision
}

// Usage reports the counter for key without counting a request.
func (rl *Redis) Usage(ctx context.Context, key string) Usage {
	usage := Usage{Limiter: rl.policy.Name, Limit: rl.policy.Limit, Remaining: rl.policy.Limit, WindowMS: rl.policy.Window.Milliseconds()}
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	raw, err := rl.client.Get(ctx, redisKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			rl.logRedisError("get", err)
		}
		return usage
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return usage
	}
	ttl, _ := remainingWindow(rl.client.PTTL(ctx, redisKey).Result())
	if ttl <= 0 {
		ttl = rl.policy.Window
	}
	usage.Count = count
	usage.Remaining = max(rl.policy.Limit-count, 0)
	reset := rl.now().Add(ttl)
	usage.ResetAt = &reset
	return usage
}

// remainingWindow interprets a PTTL reply. Redis answers -1 for a key that
// exists without an expiry and -2 for a missing key; the first needs its
// expiry restored. A zero duration means the window length applies.
func remainingWindow(ttl time.Duration, err error) (time.Duration, bool) {
	if err != nil {
		return 0, false
	}
	if ttl == -1 {
		return 0, true
	}
	if ttl < 0 {
		return 0, false
	}
	return ttl, false
}

// Close is a no-op; expiry is handled by Redis and the client is shared.
func (rl *Redis) Close() {}

func (rl *Redis) logRedisError(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Error("redis rate limiter error", "limiter", rl.policy.Name, "op", op, "error", err)
}
