package handlers

import (
	"log/slog"
	"net/http"
	"strings"
)

// MessageRequest defines the request body for POST and DELETE /messages.
type MessageRequest struct {
	Message string `json:"message"`
}

// MessagesResponse lists the message pool.
type MessagesResponse struct {
	Messages []string `json:"messages"`
	Count    int      `json:"count"`
}

// MessagesHandler lists, adds and removes pool messages. Changes are written
// to the messages file and picked up by the next session.
type MessagesHandler struct {
	logger *slog.Logger
	pool   MessagePool
}

// NewMessagesHandler creates a new MessagesHandler.
func NewMessagesHandler(logger *slog.Logger, pool MessagePool) *MessagesHandler {
	return &MessagesHandler{
		logger: logger,
		pool:   pool,
	}
}

// ServeHTTP implements http.Handler.
func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.list(w)
		return
	}

	var req MessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	var (
		changed bool
		err     error
	)
	switch r.Method {
	case http.MethodPost:
		changed, err = h.pool.Add(req.Message)
	case http.MethodDelete:
		changed, err = h.pool.Remove(req.Message)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		return
	}
	if err != nil {
		h.logger.Error("failed to update messages", "method", r.Method, "error", err)
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	switch {
	case changed:
		h.logger.Info("messages updated", "method", r.Method, "count", len(h.pool.All()))
		h.list(w)
	case r.Method == http.MethodPost:
		writeError(w, http.StatusConflict, "message already present")
	default:
		writeError(w, http.StatusNotFound, "message not found")
	}
}

func (h *MessagesHandler) list(w http.ResponseWriter) {
	msgs := h.pool.All()
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: msgs, Count: len(msgs)})
}
