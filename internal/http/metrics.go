package httpx

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Access gates label each route by what stands in front of its handler.
// Rate limited routes use their limiter policy name instead.
const (
	gatePublic    = "public"
	gateScheduler = "scheduler"
	gateAdmin     = "admin"
)

var latencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30}

func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		r.requestTotal = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "izzocam",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, access gate and status class",
		}, []string{"method", "route", "gate", "status_class"}))

		// Commentary requests wait on the vision model, hence the long tail.
		r.requestLatency = registerHistogramVec(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "izzocam",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP handlers by route and access gate",
			Buckets:   latencyBuckets,
		}, []string{"route", "gate"}))

		r.rateLimitHits = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "izzocam",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Requests denied by a limiter policy, by caller kind",
		}, []string{"limiter", "caller"}))

		r.metricsInitialized = true
	})
}

func registerCounterVec(c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func registerHistogramVec(h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
	}
	return h
}

func (r *Router) recordRequestMetrics(method, route, gate string, status int, duration time.Duration) {
	if !r.metricsInitialized {
		return
	}
	r.requestTotal.WithLabelValues(method, route, gate, statusClass(status)).Inc()
	r.requestLatency.WithLabelValues(route, gate).Observe(duration.Seconds())
}

// recordRateLimitHit counts a denial. Identity keys are reduced to their kind
// so the series stay bounded.
func (r *Router) recordRateLimitHit(limiter string, id Identity) {
	if !r.metricsInitialized {
		return
	}
	r.rateLimitHits.WithLabelValues(limiter, callerKind(id)).Inc()
}

func callerKind(id Identity) string {
	if id.UserID != "" {
		return "user"
	}
	if kind, _, ok := strings.Cut(id.Key, ":"); ok && kind != "" {
		return kind
	}
	return "unknown"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
