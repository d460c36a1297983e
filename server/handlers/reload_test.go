package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockReloader struct {
	err   error
	calls int
}

func (m *mockReloader) Reload() error {
	m.calls++
	return m.err
}

func TestReloadHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name     string
		subject  string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "configuration", subject: "configuration", wantCode: http.StatusNoContent},
		{name: "history", subject: "session history", wantCode: http.StatusNoContent},
		{
			name:     "missing config",
			subject:  "configuration",
			err:      errors.New("config file not found"),
			wantCode: http.StatusInternalServerError,
			wantBody: "failed to reload configuration: config file not found",
		},
		{
			name:     "unreadable history",
			subject:  "session history",
			err:      errors.New("permission denied"),
			wantCode: http.StatusInternalServerError,
			wantBody: "failed to reload session history: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reloader := &mockReloader{err: tt.err}
			w := httptest.NewRecorder()

			NewReloadHandler(logger, tt.subject, reloader).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reload", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, 1, reloader.calls)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
}
