package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestMediaTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	token, err := GenerateMediaToken("snapshots/2025-03-03/b1/f1.jpeg", "secret", 5*time.Minute, now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseMediaToken(token, "snapshots/2025-03-03/b1/f1.jpeg", "secret", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", claims.ExpiresAt.Time)
	}
}

func TestMediaTokenRejectsExpiredAndForeignPath(t *testing.T) {
	now := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	token, err := GenerateMediaToken("a.jpeg", "secret", 300*time.Second, now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseMediaToken(token, "a.jpeg", "secret", now.Add(301*time.Second)); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
	if _, err := ParseMediaToken(token, "b.jpeg", "secret", now); !errors.Is(err, ErrPathMismatch) {
		t.Fatalf("expected ErrPathMismatch, got %v", err)
	}
	if _, err := ParseMediaToken(token, "a.jpeg", "other", now); err == nil {
		t.Fatal("expected signature mismatch to be rejected")
	}
}
