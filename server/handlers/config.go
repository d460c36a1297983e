package handlers

import (
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"
)

// ConfigHandler serves the current configuration with passwords and proxy
// credentials masked. YAML by default, JSON with ?format=json.
type ConfigHandler struct {
	provider ConfigProvider
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(provider ConfigProvider) *ConfigHandler {
	return &ConfigHandler{provider: provider}
}

// ServeHTTP implements http.Handler.
func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	redacted := h.provider.Config().Redacted()

	switch format := r.URL.Query().Get("format"); format {
	case "json":
		writeJSON(w, http.StatusOK, redacted)
	case "", "yaml":
		w.Header().Set("Content-Type", "text/yaml")
		w.WriteHeader(http.StatusOK)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(redacted); err != nil {
			slog.Error("failed to encode YAML response", "error", err)
		}
		_ = enc.Close()
	default:
		writeError(w, http.StatusBadRequest, "unsupported format %q", format)
	}
}
