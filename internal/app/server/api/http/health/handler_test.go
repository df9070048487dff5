package health

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type pinger struct {
	err error
}

func (p pinger) Ping(context.Context) error {
	return p.err
}

func TestHandler_healthCheck(t *testing.T) {
	tests := []struct {
		name           string
		pingErr        error
		expectedStatus string
		wantErr        bool
	}{
		{
			name:           "health check returns OK",
			expectedStatus: "OK",
		},
		{
			name:    "database down",
			pingErr: errors.New("connection refused"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(pinger{err: tt.pingErr}, slog.Default(), huma.Middlewares{})

			output, err := handler.healthCheck(context.Background(), &Input{})

			if tt.wantErr {
				var se huma.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusServiceUnavailable, se.GetStatus())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, output.Body.Status)
			assert.Equal(t, "up", output.Body.Database)
		})
	}
}

func TestHandler_Route(t *testing.T) {
	_, api := humatest.New(t)
	NewHandler(pinger{}, slog.Default(), nil).SetupRoutes(api)

	resp := api.Get("/api/v1/health")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"OK"`)
}
