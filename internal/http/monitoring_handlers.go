package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/splax/izzocam/internal/service/monitoring"
)

// parseWindow accepts Go durations plus a whole-day form such as "7d".
func parseWindow(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return monitoring.DefaultWindow, true
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * 24 * time.Hour, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func (r *Router) handleMonitoringHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	health, err := r.monitor.Health(req.Context())
	if err != nil {
		r.logger.Error("monitoring health failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":    "error",
			"error":     "failed to summarise monitoring data",
			"timestamp": r.now().UTC(),
		})
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (r *Router) handleMonitoringUsage(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	window, ok := parseWindow(req.URL.Query().Get("window"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid window")
		return
	}
	summary, err := r.monitor.SummarizeUsage(req.Context(), window)
	if err != nil {
		r.logger.Error("usage summary failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to summarise usage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window":  window.String(),
		"summary": summary,
	})
}

func (r *Router) handleMonitoringErrors(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	window, ok := parseWindow(req.URL.Query().Get("window"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid window")
		return
	}
	summary, err := r.monitor.SummarizeErrors(req.Context(), window)
	if err != nil {
		r.logger.Error("error summary failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to summarise errors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window":  window.String(),
		"summary": summary,
	})
}

func (r *Router) handleMonitoringRateLimit(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	identity := strings.TrimSpace(req.URL.Query().Get("identity"))
	if identity == "" {
		writeError(w, http.StatusBadRequest, "identity is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity": identity,
		"limiters": r.limiters.Usage(req.Context(), identity),
	})
}

func (r *Router) handleCronRecap(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost && req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	result, err := r.recap.Run(req.Context())
	if err != nil {
		r.writeGenerateError(w, err)
		return
	}
	status := http.StatusOK
	if result.Entry != nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (r *Router) handleCronCosts(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost && req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	check, err := r.monitor.CheckCostAlerts(req.Context())
	if err != nil {
		r.logger.Error("cost check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check costs")
		return
	}
	writeJSON(w, http.StatusOK, check)
}
