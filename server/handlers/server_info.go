package handlers

import (
	"net/http"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/server/types"
)

// PropertiesProvider describes the running server.
type PropertiesProvider interface {
	Properties() types.ServerProperties
}

// ServerInfoHandler handles requests for build and instance metadata.
type ServerInfoHandler struct {
	provider PropertiesProvider
}

// NewServerInfoHandler creates a new ServerInfoHandler.
func NewServerInfoHandler(provider PropertiesProvider) *ServerInfoHandler {
	return &ServerInfoHandler{provider: provider}
}

// ServeHTTP implements http.Handler.
func (h *ServerInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.Properties())
}
