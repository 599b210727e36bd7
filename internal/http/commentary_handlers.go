package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/ratelimit"
	"github.com/splax/izzocam/internal/repository"
	"github.com/splax/izzocam/internal/service/commentary"
	"github.com/splax/izzocam/internal/service/settings"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type generateRequest struct {
	Mode  string     `json:"mode"`
	Since *time.Time `json:"since,omitempty"`
}

func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	limit := defaultListLimit
	if raw := strings.TrimSpace(req.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxListLimit)
		}
	}
	id := callerIdentity(req)
	start := time.Now()
	entries, err := r.log.Recent(req.Context(), limit)
	r.monitor.RecordOperation(req.Context(), domain.ServiceStore, domain.OperationListCommentary, id.UserID, err == nil, time.Since(start))
	if err != nil {
		r.logger.Error("list commentary failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load commentary")
		return
	}
	if entries == nil {
		entries = []domain.CommentaryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (r *Router) handleLatestHourly(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	entry, err := r.log.LatestByMode(req.Context(), domain.ModeHourly)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no hourly commentary yet")
			return
		}
		r.logger.Error("load hourly commentary failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load commentary")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry": entry})
}

func (r *Router) handleRequest(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	id := callerIdentity(req)
	requester := id.UserID
	if requester == "" {
		requester = id.Key
	}
	start := time.Now()
	entry, err := r.commentary.Generate(req.Context(), commentary.GenerateInput{
		Mode:        domain.ModeAdhoc,
		RequesterID: requester,
	})
	r.monitor.RecordOperation(req.Context(), domain.ServiceCommentary, domain.OperationUserRequest, id.UserID, err == nil, time.Since(start))
	if err != nil {
		r.monitor.RecordError(req.Context(), domain.ErrorRecord{
			Service:   domain.ServiceCommentary,
			Operation: domain.OperationUserRequest,
			UserID:    id.UserID,
			Error:     err.Error(),
			Severity:  domain.SeverityHigh,
		})
		r.writeGenerateError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

func (r *Router) handleGenerate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var body generateRequest
	if req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	mode := domain.ModeHourly
	if strings.TrimSpace(body.Mode) != "" {
		parsed, ok := domain.ParseMode(body.Mode)
		if !ok {
			writeError(w, http.StatusBadRequest, "mode must be hourly or adhoc")
			return
		}
		mode = parsed
	}
	entry, err := r.commentary.Generate(req.Context(), commentary.GenerateInput{
		Mode:        mode,
		RequesterID: "manual-trigger",
		Since:       body.Since,
		Operation:   domain.OperationManualTrigger,
	})
	if err != nil {
		r.writeGenerateError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

func (r *Router) writeGenerateError(w http.ResponseWriter, err error) {
	var modelErr *commentary.ModelError
	switch {
	case errors.Is(err, commentary.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &modelErr):
		r.logger.Error("commentary model call failed", "error", err)
		writeError(w, http.StatusBadGateway, "commentary provider unavailable")
	default:
		r.logger.Error("generate commentary failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate commentary")
	}
}

func (r *Router) handleConfig(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		if !r.allow(w, req, ratelimit.ConfigRead.Name) {
			return
		}
		r.getConfig(w, req)
	case http.MethodPut, http.MethodPatch:
		r.requireToken(r.adminTokenHash, "admin", r.updateConfig)(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) getConfig(w http.ResponseWriter, req *http.Request) {
	cfg := r.settings.Get(req.Context())
	status := map[string]any{
		"commentaryEnabled":   r.commentary != nil,
		"lastSuccessfulRecap": nil,
	}
	if entry, err := r.log.LatestByMode(req.Context(), domain.ModeHourly); err == nil && entry != nil {
		status["lastSuccessfulRecap"] = entry.CreatedAt
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		r.logger.Warn("load last recap for config status failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"config":       cfg,
		"systemStatus": status,
	})
}

func (r *Router) updateConfig(w http.ResponseWriter, req *http.Request) {
	var patch domain.CommentaryConfig
	if err := json.NewDecoder(req.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	cfg, err := r.settings.Update(req.Context(), patch)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidConfig) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		r.logger.Error("update commentary config failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update config")
		return
	}
	r.logger.Info("commentary config updated", "tone", cfg.Tone, "comedic_level", cfg.ComedicLevel)
	writeJSON(w, http.StatusOK, map[string]any{"config": cfg})
}
