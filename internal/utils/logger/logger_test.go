package logger

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"motium/internal/app/server/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		env           string
		expectedLevel slog.Level
	}{
		{
			name:          "local environment",
			env:           config.EnvLocal,
			expectedLevel: slog.LevelDebug,
		},
		{
			name:          "dev environment",
			env:           config.EnvDev,
			expectedLevel: slog.LevelDebug,
		},
		{
			name:          "prod environment",
			env:           config.EnvProd,
			expectedLevel: slog.LevelInfo,
		},
		{
			name:          "unknown environment",
			env:           "staging",
			expectedLevel: slog.LevelInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.env)
			require.NotNil(t, logger)
			ctx := context.Background()
			assert.Equal(t, tt.expectedLevel <= slog.LevelDebug, logger.Enabled(ctx, slog.LevelDebug))
			assert.True(t, logger.Enabled(ctx, slog.LevelInfo))
		})
	}
}

func TestSetupPrettySlog(t *testing.T) {
	logger := setupPrettySlog()
	require.NotNil(t, logger)

	ctx := context.Background()
	assert.True(t, logger.Enabled(ctx, slog.LevelDebug))
}

func TestPrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.EnvLocal, &buf).With("component", "sync_engine")

	logger.Info("batch pushed", "count", 3, "error", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "batch pushed")
	assert.Contains(t, out, `"component": "sync_engine"`)
	assert.Contains(t, out, `"error": "boom"`)
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(config.EnvProd, &buf).Debug("hidden")
	assert.Empty(t, buf.String())

	NewWithWriter(config.EnvProd, &buf).Info("shown", "record_id", "r1")
	assert.Contains(t, buf.String(), `"record_id":"r1"`)
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motium.log")

	logger, closer := NewFile(path, false)
	logger.Debug("skipped")
	logger.Info("written")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")
	assert.NotContains(t, string(data), "skipped")
}
