package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/server/runner"
)

// NextRunResponse is the JSON response for the next scheduled session.
type NextRunResponse struct {
	Scheduled bool       `json:"scheduled"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// APIStatusResponse is the consolidated response for /api/status.
type APIStatusResponse struct {
	Run     runner.RunStatus `json:"run"`
	NextRun NextRunResponse  `json:"next_run"`
	// Today holds the successful actions per category of every enabled account
	// since local midnight.
	Today map[string]map[string]int `json:"today,omitempty"`
}

// APIStatusProvider aggregates all the providers needed for the status endpoint.
type APIStatusProvider interface {
	Status() runner.RunStatus
	NextRun() *time.Time
	TodayActions(ctx context.Context) (map[string]map[string]int, error)
}

// APIStatusHandler handles requests for the consolidated status endpoint.
type APIStatusHandler struct {
	logger   *slog.Logger
	provider APIStatusProvider
}

// NewAPIStatusHandler creates a new APIStatusHandler.
func NewAPIStatusHandler(logger *slog.Logger, provider APIStatusProvider) *APIStatusHandler {
	return &APIStatusHandler{
		logger:   logger,
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *APIStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	today, err := h.provider.TodayActions(r.Context())
	if err != nil {
		h.logger.Error("failed to count today's actions", "error", err)
	}

	nextRun := h.provider.NextRun()
	resp := APIStatusResponse{
		Run: h.provider.Status(),
		NextRun: NextRunResponse{
			Scheduled: nextRun != nil,
			NextRun:   nextRun,
		},
		Today: today,
	}

	writeJSON(w, http.StatusOK, resp)
}
