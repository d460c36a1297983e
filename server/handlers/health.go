package handlers

import (
	"log/slog"
	"net/http"
)

// HandleHealth is a simple health check handler that returns "ok".
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		slog.Error("failed to write health response", "error", err)
	}
}
