package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/server/runner"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/workflows/automation"
)

// TargetList accepts either a JSON array of usernames or a single string
// separated by commas, semicolons or whitespace.
type TargetList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *TargetList) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*l = strings.FieldsFunc(raw, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\r' || r == '\t'
		})
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("targets must be a string or an array of strings")
	}
	*l = list
	return nil
}

// RunRequest defines the request body for POST /run.
type RunRequest struct {
	// Targets are usernames to process. Empty uses the configured targets file.
	Targets TargetList `json:"targets"`
	// Accounts restricts the session to these accounts. Empty selects all enabled.
	Accounts []string `json:"accounts"`
	// ResumeSessionID continues an earlier session; Targets must be empty.
	ResumeSessionID string `json:"resume_session_id"`
}

// RunResponse is returned when a session was started.
type RunResponse struct {
	SessionID string `json:"session_id"`
}

// RunHandler handles requests to start a session.
type RunHandler struct {
	runner SessionRunner
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(r SessionRunner) *RunHandler {
	return &RunHandler{
		runner: r,
	}
}

// ServeHTTP implements http.Handler.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	if req.ResumeSessionID != "" && len(req.Targets) > 0 {
		writeError(w, http.StatusBadRequest, "targets cannot be combined with resume_session_id")
		return
	}

	seen := make(map[string]bool, len(req.Accounts))
	for _, a := range req.Accounts {
		if seen[a] {
			writeError(w, http.StatusBadRequest, "duplicate account %q in request", a)
			return
		}
		seen[a] = true
	}

	err := h.runner.Run(automation.Request{
		Targets:         req.Targets,
		Accounts:        req.Accounts,
		ResumeSessionID: req.ResumeSessionID,
	})
	if err != nil {
		if errors.Is(err, runner.ErrRunInProgress) {
			writeError(w, http.StatusConflict, "%v", err)
			return
		}
		// No targets, unknown account or invalid configuration
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	writeJSON(w, http.StatusAccepted, RunResponse{SessionID: h.runner.Status().ID})
}

// RunStatusHandler handles requests for the current session status.
type RunStatusHandler struct {
	runner SessionRunner
}

// NewRunStatusHandler creates a new RunStatusHandler.
func NewRunStatusHandler(r SessionRunner) *RunStatusHandler {
	return &RunStatusHandler{
		runner: r,
	}
}

// ServeHTTP implements http.Handler.
func (h *RunStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runner.Status())
}
