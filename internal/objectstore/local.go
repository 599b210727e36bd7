// Package objectstore keeps captured frame bytes on local disk and hands out
// short-lived signed read URLs for them.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/splax/izzocam/pkg/jwt"
)

// DefaultURLTTL is how long a signed read URL stays valid when no TTL is given.
const DefaultURLTTL = 300 * time.Second

var (
	// ErrInvalidPath is returned for object paths that are empty or escape the root.
	ErrInvalidPath = errors.New("objectstore: invalid object path")
	// ErrInvalidToken is returned when a read token is missing, expired or foreign.
	ErrInvalidToken = errors.New("objectstore: invalid read token")
)

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Local stores objects under a root directory.
type Local struct {
	root    string
	baseURL string
	secret  string
	now     func() time.Time
}

// NewLocal ensures the root exists and returns a store that signs URLs
// relative to baseURL with secret.
func NewLocal(root, baseURL, secret string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("object store root cannot be empty")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("object store signing secret cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create object store root: %w", err)
	}
	return &Local{
		root:    root,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		secret:  secret,
		now:     time.Now,
	}, nil
}

// FramePath builds the canonical object path for a captured frame.
func FramePath(burstID, frameID, mimeType string, capturedAt time.Time) string {
	ext := "jpg"
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && sub != "" {
		ext = unsafeSegment.ReplaceAllString(sub, "_")
	}
	return path.Join(
		"snapshots",
		capturedAt.UTC().Format("2006-01-02"),
		unsafeSegment.ReplaceAllString(burstID, "_"),
		unsafeSegment.ReplaceAllString(frameID, "_")+"."+ext,
	)
}

// Put writes data at objectPath and returns the stored path.
func (s *Local) Put(ctx context.Context, objectPath string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, clean, err := s.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("commit object: %w", err)
	}
	return clean, nil
}

// SignedURL returns a URL that allows reading objectPath until ttl elapses.
func (s *Local) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	_, clean, err := s.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	token, err := jwt.GenerateMediaToken(clean, s.secret, ttl, s.now())
	if err != nil {
		return "", fmt.Errorf("sign object url: %w", err)
	}
	escaped := (&url.URL{Path: clean}).EscapedPath()
	return s.baseURL + "/media/" + escaped + "?token=" + url.QueryEscape(token), nil
}

// Open verifies token for objectPath and opens the object for reading.
func (s *Local) Open(objectPath, token string) (*os.File, error) {
	full, clean, err := s.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	if _, err := jwt.ParseMediaToken(token, clean, s.secret, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return os.Open(full)
}

func (s *Local) resolve(objectPath string) (string, string, error) {
	trimmed := strings.TrimSpace(objectPath)
	if trimmed == "" {
		return "", "", ErrInvalidPath
	}
	clean := path.Clean("/" + trimmed)[1:]
	if clean == "" || clean != strings.TrimPrefix(trimmed, "/") {
		return "", "", ErrInvalidPath
	}
	full := filepath.Join(s.root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", "", ErrInvalidPath
	}
	return full, clean, nil
}
