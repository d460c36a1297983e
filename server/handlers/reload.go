package handlers

import (
	"log/slog"
	"net/http"
)

// ReloadHandler re-reads state from disk: the configuration on POST /reload
// and the session history on POST /history/reload.
type ReloadHandler struct {
	logger   *slog.Logger
	subject  string
	reloader Reloader
}

// NewReloadHandler creates a new ReloadHandler. subject names what is
// reloaded in logs and error responses.
func NewReloadHandler(logger *slog.Logger, subject string, reloader Reloader) *ReloadHandler {
	return &ReloadHandler{
		logger:   logger.With("subject", subject),
		subject:  subject,
		reloader: reloader,
	}
}

// ServeHTTP implements http.Handler.
func (h *ReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.reloader.Reload(); err != nil {
		h.logger.Error("reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload %s: %v", h.subject, err)
		return
	}

	h.logger.Info("reloaded")
	w.WriteHeader(http.StatusNoContent)
}
