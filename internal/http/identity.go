package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/splax/izzocam/pkg/crypto"
)

type ctxKey string

const identityContextKey ctxKey = "identity"

// Identity names the caller for rate limiting and usage attribution.
type Identity struct {
	UserID string
	Key    string
}

// identityFor prefers an explicit user id and falls back to the client IP.
func identityFor(req *http.Request) Identity {
	if id := strings.TrimSpace(req.Header.Get("X-User-ID")); id != "" {
		return Identity{UserID: id, Key: "user:" + id}
	}
	ip := clientIP(req)
	if ip == "" {
		ip = "unknown"
	}
	return Identity{Key: "ip:" + ip}
}

func identityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

func withIdentityContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// callerIdentity returns the identity stored by withIdentity, resolving it
// from the request when the middleware did not run.
func callerIdentity(req *http.Request) Identity {
	if id, ok := identityFromContext(req.Context()); ok {
		return id
	}
	return identityFor(req)
}

func (r *Router) withIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := withIdentityContext(req.Context(), identityFor(req))
		if setter, ok := w.(interface{ SetContext(context.Context) }); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// requireToken admits requests bearing a token matching hash. An empty hash
// closes the route.
func (r *Router) requireToken(hash, role string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !r.authorized(req, hash) {
			r.logger.Warn("rejected unauthenticated request", "role", role, "path", req.URL.Path, "ip", clientIP(req))
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, req)
	}
}

func (r *Router) authorized(req *http.Request, hash string) bool {
	token := bearerToken(req)
	if token == "" {
		return false
	}
	return crypto.VerifyToken(hash, token) == nil
}

func bearerToken(req *http.Request) string {
	header := strings.TrimSpace(req.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
