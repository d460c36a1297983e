package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/config"
)

type mockConfigProvider struct {
	config *config.Config
}

func (m *mockConfigProvider) Config() *config.Config {
	return m.config
}

func TestConfigHandler(t *testing.T) {
	cfg := config.Default()
	cfg.Accounts = []config.AccountConfig{
		{Username: "bot_one", Password: "secret", Proxy: "10.0.0.1:3128:user:pass"},
	}

	handler := NewConfigHandler(&mockConfigProvider{config: &cfg})

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/yaml", w.Header().Get("Content-Type"))
	assert.NotContains(t, w.Body.String(), "secret")

	var resp config.Config
	require.NoError(t, yaml.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Accounts, 1)
	assert.Equal(t, "bot_one", resp.Accounts[0].Username)
	assert.Equal(t, "REDACTED", resp.Accounts[0].Password)
	assert.Equal(t, "10.0.0.1:3128:REDACTED:REDACTED", resp.Accounts[0].Proxy)
	assert.Equal(t, cfg.Parallel.MaxParallelAccounts, resp.Parallel.MaxParallelAccounts)
}

func TestConfigHandler_Formats(t *testing.T) {
	cfg := config.Default()
	cfg.Accounts = []config.AccountConfig{{Username: "bot_one", Password: "secret"}}
	handler := NewConfigHandler(&mockConfigProvider{config: &cfg})

	tests := []struct {
		query           string
		wantCode        int
		wantContentType string
	}{
		{query: "?format=yaml", wantCode: http.StatusOK, wantContentType: "text/yaml"},
		{query: "?format=json", wantCode: http.StatusOK, wantContentType: "application/json"},
		{query: "?format=toml", wantCode: http.StatusBadRequest, wantContentType: "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/config"+tt.query, nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantContentType, w.Header().Get("Content-Type"))
			assert.NotContains(t, w.Body.String(), "secret")
		})
	}
}
