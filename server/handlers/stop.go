package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/server/runner"
)

// StopRequest defines the request body for POST /stop.
type StopRequest struct {
	Account string `json:"account"`
}

// StopHandler handles requests to stop one account of the running session.
type StopHandler struct {
	logger  *slog.Logger
	stopper AccountStopper
}

// NewStopHandler creates a new StopHandler.
func NewStopHandler(logger *slog.Logger, stopper AccountStopper) *StopHandler {
	return &StopHandler{
		logger:  logger,
		stopper: stopper,
	}
}

// ServeHTTP implements http.Handler.
func (h *StopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if req.Account == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "account is required"})
		return
	}

	switch err := h.stopper.Stop(req.Account); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, runner.ErrNotRunning):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, runner.ErrAccountNotActive):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	default:
		h.logger.Error("failed to stop account", "account", req.Account, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
