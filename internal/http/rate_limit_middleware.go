package httpx

import (
	"net/http"
	"strconv"
)

// withRateLimit guards next with the limiter named policy. Unknown policies
// pass through.
func (r *Router) withRateLimit(policy string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !r.allow(w, req, policy) {
			return
		}
		next(w, req)
	}
}

// allow consumes one request from policy for the caller and writes the 429
// response when denied.
func (r *Router) allow(w http.ResponseWriter, req *http.Request, policy string) bool {
	limiter, ok := r.limiters.Get(policy)
	if !ok {
		return true
	}
	id := callerIdentity(req)
	decision := limiter.Allow(req.Context(), id.Key)
	applyRateHeaders(w, decision.Limit, decision.Remaining(), decision.ResetAt.Unix())
	if decision.Allowed {
		return true
	}
	retry := decision.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	r.recordRateLimitHit(policy, id)
	r.logger.Warn("rate limit exceeded",
		"limiter", policy,
		"identity", id.Key,
		"count", decision.Count,
		"limit", decision.Limit,
		"path", req.URL.Path,
	)
	writeRateLimited(w, policy, retry)
	return false
}

func applyRateHeaders(w http.ResponseWriter, limit, remaining int, reset int64) {
	if limit <= 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
}
