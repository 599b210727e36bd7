package objectstore

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestFramePathSanitisesSegments(t *testing.T) {
	captured := time.Date(2025, time.June, 1, 23, 59, 0, 0, time.UTC)
	got := FramePath("burst/1", "frame 0", "image/jpeg", captured)
	want := "snapshots/2025-06-01/burst_1/frame_0.jpeg"
	if got != want {
		t.Fatalf("FramePath = %q, want %q", got, want)
	}
}

func TestPutSignAndOpen(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "http://media.test/", "secret")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	ref, err := store.Put(context.Background(), "snapshots/2025-06-01/b1/f1.jpeg", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	signed, err := store.SignedURL(context.Background(), ref, 0)
	if err != nil {
		t.Fatalf("signed url: %v", err)
	}
	if !strings.HasPrefix(signed, "http://media.test/media/snapshots/2025-06-01/b1/f1.jpeg?token=") {
		t.Fatalf("unexpected signed url %q", signed)
	}
	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	token := parsed.Query().Get("token")

	f, err := store.Open(ref, token)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "jpeg-bytes" {
		t.Fatalf("unexpected object contents %q", data)
	}

	store.now = func() time.Time { return base.Add(DefaultURLTTL + time.Second) }
	if _, err := store.Open(ref, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "", "secret")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, p := range []string{"", "../etc/passwd", "a/../../b", "   "} {
		if _, err := store.SignedURL(context.Background(), p, time.Minute); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("path %q: expected ErrInvalidPath, got %v", p, err)
		}
	}
}
