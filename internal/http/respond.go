package httpx

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeRateLimited sends the 429 body shared by every limiter.
func writeRateLimited(w http.ResponseWriter, policy string, retryAfter int) {
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":      "rate limit exceeded",
		"message":    "Too many requests for " + policy + ", try again later",
		"retryAfter": retryAfter,
	})
}
