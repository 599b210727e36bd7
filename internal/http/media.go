package httpx

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/objectstore"
)

func (r *Router) handleMedia(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		r.methodNotAllowed(w)
		return
	}
	if r.media == nil {
		r.notFound(w)
		return
	}
	objectPath := strings.TrimPrefix(req.URL.Path, "/media/")
	start := time.Now()
	f, err := r.media.Open(objectPath, req.URL.Query().Get("token"))
	if err != nil {
		r.monitor.RecordOperation(req.Context(), domain.ServiceMedia, domain.OperationServeFrame, "", false, time.Since(start))
		switch {
		case errors.Is(err, objectstore.ErrInvalidPath):
			writeError(w, http.StatusBadRequest, "invalid media path")
		case errors.Is(err, objectstore.ErrInvalidToken):
			writeError(w, http.StatusForbidden, "invalid or expired media token")
		case errors.Is(err, fs.ErrNotExist):
			r.notFound(w)
		default:
			r.logger.Error("open media failed", "path", objectPath, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to open media")
		}
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		r.monitor.RecordOperation(req.Context(), domain.ServiceMedia, domain.OperationServeFrame, "", false, time.Since(start))
		r.notFound(w)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=60")
	http.ServeContent(w, req, path.Base(objectPath), info.ModTime(), f)
	r.monitor.RecordOperation(req.Context(), domain.ServiceMedia, domain.OperationServeFrame, "", true, time.Since(start))
}
