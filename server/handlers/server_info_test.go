package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/buildinfo"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/server/types"
)

type mockProperties struct {
	props types.ServerProperties
}

func (m mockProperties) Properties() types.ServerProperties { return m.props }

func TestServerInfoHandler(t *testing.T) {
	h := NewServerInfoHandler(mockProperties{props: types.ServerProperties{
		Build:     buildinfo.Properties{BuildTime: "2024-05-01", GitCommit: "abc123"},
		StartedAt: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
		Hostname:  "bot-host",
		Accounts:  []string{"bot_one"},
	}})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/server", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"git_commit":"abc123"`)
	assert.Contains(t, body, `"hostname":"bot-host"`)
	assert.Contains(t, body, `"accounts":["bot_one"]`)
	assert.NotContains(t, body, "schedules")
}
