package handlers

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/distribution"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/server/runner"
)

// HistoryHandler handles requests for the session history, most recent first.
// ?account= keeps the sessions an account took part in and ?limit= caps the
// number of sessions returned.
type HistoryHandler struct {
	provider HistoryProvider
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(provider HistoryProvider) *HistoryHandler {
	return &HistoryHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	history := slices.Clone(h.provider.History())

	if account := r.URL.Query().Get("account"); account != "" {
		history = slices.DeleteFunc(history, func(s runner.RunSummary) bool {
			return !slices.Contains(s.Accounts, account)
		})
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit %q", raw)
			return
		}
		if len(history) > limit {
			history = history[:limit]
		}
	}

	if history == nil {
		history = []runner.RunSummary{}
	}
	writeJSON(w, http.StatusOK, history)
}

// HistoryLogsHandler handles requests for the account executions of one session.
type HistoryLogsHandler struct {
	provider HistoryProvider
}

// NewHistoryLogsHandler creates a new HistoryLogsHandler.
func NewHistoryLogsHandler(provider HistoryProvider) *HistoryLogsHandler {
	return &HistoryLogsHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *HistoryLogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	executions := h.provider.Logs(id)
	if executions == nil {
		writeError(w, http.StatusNotFound, "session not found: %s", id)
		return
	}

	writeJSON(w, http.StatusOK, executions)
}

// HistorySnapshotHandler returns the distribution snapshot saved for a session.
type HistorySnapshotHandler struct {
	provider HistoryProvider
}

// NewHistorySnapshotHandler creates a new HistorySnapshotHandler.
func NewHistorySnapshotHandler(provider HistoryProvider) *HistorySnapshotHandler {
	return &HistorySnapshotHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *HistorySnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	history := h.provider.History()
	i := slices.IndexFunc(history, func(s runner.RunSummary) bool { return s.ID == id })
	if i < 0 {
		writeError(w, http.StatusNotFound, "session not found: %s", id)
		return
	}
	path := history[i].SnapshotPath
	if path == "" {
		writeError(w, http.StatusNotFound, "no snapshot saved for session %s", id)
		return
	}

	snap, err := distribution.LoadSnapshot(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
