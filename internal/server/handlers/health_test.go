package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/offsync/pkg/api"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		db     Pinger
		name   string
		status string
		code   int
	}{
		{name: "no database", db: nil, status: "ok", code: http.StatusOK},
		{name: "sqlite", db: setupTestStorage(t), status: "ok", code: http.StatusOK},
		{
			name:   "ping fails",
			db:     pingerFunc(func(context.Context) error { return errors.New("database is locked") }),
			status: "unavailable",
			code:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(setupTestLogger(), tt.db)

			w := doJSON(t, handler.Health, http.MethodGet, "/api/v1/health", nil)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.status, decode[api.HealthResponse](t, w).Status)
		})
	}
}
