package httpx

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/ratelimit"
	"github.com/splax/izzocam/internal/service/commentary"
	"github.com/splax/izzocam/internal/service/monitoring"
	"github.com/splax/izzocam/internal/service/recap"
	"github.com/splax/izzocam/internal/ws"
)

const healthCheckTimeout = 2 * time.Second

// CommentaryGenerator produces new entries.
type CommentaryGenerator interface {
	Generate(ctx context.Context, in commentary.GenerateInput) (domain.CommentaryEntry, error)
}

// CommentaryReader reads the commentary log.
type CommentaryReader interface {
	Recent(ctx context.Context, limit int) ([]domain.CommentaryEntry, error)
	LatestByMode(ctx context.Context, mode domain.CommentaryMode) (*domain.CommentaryEntry, error)
}

// ConfigService reads and updates the commentary persona.
type ConfigService interface {
	Get(ctx context.Context) domain.CommentaryConfig
	Update(ctx context.Context, patch domain.CommentaryConfig) (domain.CommentaryConfig, error)
}

// RecapRunner runs the guarded hourly recap.
type RecapRunner interface {
	Run(ctx context.Context) (recap.Result, error)
}

// Monitor exposes usage accounting and summaries.
type Monitor interface {
	RecordUsage(ctx context.Context, record domain.UsageRecord)
	RecordError(ctx context.Context, record domain.ErrorRecord)
	RecordOperation(ctx context.Context, service, operation, userID string, success bool, duration time.Duration)
	SummarizeUsage(ctx context.Context, window time.Duration) (domain.UsageSummary, error)
	SummarizeErrors(ctx context.Context, window time.Duration) (domain.ErrorSummary, error)
	CheckCostAlerts(ctx context.Context) (monitoring.CostCheck, error)
	Health(ctx context.Context) (monitoring.Health, error)
}

// MediaStore opens stored frames after verifying a read token.
type MediaStore interface {
	Open(objectPath, token string) (*os.File, error)
}

// Deps bundles the router's collaborators.
type Deps struct {
	Logger     *slog.Logger
	Commentary CommentaryGenerator
	Log        CommentaryReader
	Settings   ConfigService
	Recap      RecapRunner
	Monitor    Monitor
	Limiters   *ratelimit.Set
	Media      MediaStore
	Hub        *ws.Hub

	// SchedulerTokenHash and AdminTokenHash are bcrypt hashes of the bearer
	// tokens accepted on scheduler and admin routes.
	SchedulerTokenHash string
	AdminTokenHash     string
	DBHealth           func(context.Context) error
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	commentary CommentaryGenerator
	log        CommentaryReader
	settings   ConfigService
	recap      RecapRunner
	monitor    Monitor
	limiters   *ratelimit.Set
	media      MediaStore
	hub        *ws.Hub
	upgrader   websocket.Upgrader

	schedulerTokenHash string
	adminTokenHash     string
	dbHealth           func(context.Context) error

	heartbeat time.Duration
	now       func() time.Time

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

// NewRouter assembles routes with dependencies. A nil limiter set selects the
// default in-memory policies.
func NewRouter(deps Deps) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:        http.NewServeMux(),
		logger:     logger,
		commentary: deps.Commentary,
		log:        deps.Log,
		settings:   deps.Settings,
		recap:      deps.Recap,
		monitor:    deps.Monitor,
		limiters:   deps.Limiters,
		media:      deps.Media,
		hub:        deps.Hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		schedulerTokenHash: strings.TrimSpace(deps.SchedulerTokenHash),
		adminTokenHash:     strings.TrimSpace(deps.AdminTokenHash),
		dbHealth:           deps.DBHealth,
		heartbeat:          25 * time.Second,
		now:                time.Now,
	}
	if r.limiters == nil {
		r.limiters = ratelimit.NewMemorySet(ratelimit.DefaultPolicies()...)
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	r.limiters.Close()
}

func (r *Router) register() {
	general := ratelimit.GeneralAPI.Name
	r.mux.HandleFunc("/healthz", r.audit("healthz", gatePublic, r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())

	r.mux.HandleFunc("/commentary/latest", r.audit("commentary_latest", general, r.withIdentity(r.withRateLimit(general, r.handleLatest))))
	r.mux.HandleFunc("/commentary/latest/hourly", r.audit("commentary_latest_hourly", general, r.withIdentity(r.withRateLimit(general, r.handleLatestHourly))))
	r.mux.HandleFunc("/commentary/request", r.audit("commentary_request", ratelimit.CommentaryRequest.Name, r.withIdentity(r.withRateLimit(ratelimit.CommentaryRequest.Name, r.handleRequest))))
	r.mux.HandleFunc("/commentary/generate", r.audit("commentary_generate", gateScheduler, r.requireToken(r.schedulerTokenHash, "scheduler", r.handleGenerate)))
	r.mux.HandleFunc("/commentary/config", r.audit("commentary_config", ratelimit.ConfigRead.Name, r.withIdentity(r.handleConfig)))

	r.mux.HandleFunc("/cron/generate-recap", r.audit("cron_recap", gateScheduler, r.requireToken(r.schedulerTokenHash, "scheduler", r.handleCronRecap)))
	r.mux.HandleFunc("/cron/monitor-costs", r.audit("cron_costs", gateScheduler, r.requireToken(r.schedulerTokenHash, "scheduler", r.handleCronCosts)))

	r.mux.HandleFunc("/monitoring/health", r.audit("monitoring_health", gatePublic, r.handleMonitoringHealth))
	r.mux.HandleFunc("/monitoring/usage", r.audit("monitoring_usage", gateAdmin, r.requireToken(r.adminTokenHash, "admin", r.handleMonitoringUsage)))
	r.mux.HandleFunc("/monitoring/errors", r.audit("monitoring_errors", gateAdmin, r.requireToken(r.adminTokenHash, "admin", r.handleMonitoringErrors)))
	r.mux.HandleFunc("/monitoring/ratelimit", r.audit("monitoring_ratelimit", gateAdmin, r.requireToken(r.adminTokenHash, "admin", r.handleMonitoringRateLimit)))

	r.mux.HandleFunc("/media/", r.audit("media", gatePublic, r.handleMedia))
	r.mux.HandleFunc("/ws/commentary", r.audit("ws_commentary", general, r.withIdentity(r.withRateLimit(general, r.handleCommentaryWS))))
	r.mux.HandleFunc("/sse/commentary", r.audit("sse_commentary", general, r.withIdentity(r.withRateLimit(general, r.handleCommentarySSE))))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	if r.hub != nil {
		components["live_feed"] = map[string]any{"subscribers": r.hub.Subscribers(ws.TopicCommentary)}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  r.now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route, gate string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, gate, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if id, ok := identityFromContext(ctx); ok {
			fields = append(fields, "identity", id.Key)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
