package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

func TestRedisFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	rl := NewRedis(client, CommentaryRequest, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for i := 0; i < 5; i++ {
		if d := rl.Allow(context.Background(), "user:a"); !d.Allowed {
			t.Fatalf("request %d should fail open: %+v", i, d)
		}
	}
	if u := rl.Usage(context.Background(), "user:a"); u.Count != 0 || u.Limiter != "commentary_request" {
		t.Fatalf("unexpected usage %+v", u)
	}
	if rl.prefix != "izzocam:ratelimit:commentary_request:" {
		t.Fatalf("unexpected key prefix %q", rl.prefix)
	}
}

func TestRemainingWindow(t *testing.T) {
	cases := []struct {
		name   string
		ttl    time.Duration
		err    error
		want   time.Duration
		repair bool
	}{
		{name: "live window", ttl: 90 * time.Second, want: 90 * time.Second},
		{name: "no expiry", ttl: -1, repair: true},
		{name: "missing key", ttl: -2},
		{name: "redis error", ttl: 5 * time.Second, err: errors.New("timeout")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, repair := remainingWindow(tc.ttl, tc.err)
			if got != tc.want || repair != tc.repair {
				t.Fatalf("remainingWindow(%v, %v) = %v, %v", tc.ttl, tc.err, got, repair)
			}
		})
	}
}
