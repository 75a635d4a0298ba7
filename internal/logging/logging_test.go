package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")

	logger, err := New("worker", Config{Level: "debug", File: path})
	require.NoError(t, err)

	logger.Debug("rendered output", zap.String("job_id", "job-1"))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logger":"worker"`)
	assert.Contains(t, string(data), `"job_id":"job-1"`)
}

func TestSetLevelAppliesToDerivedLoggers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")

	logger, err := New("api", Config{Level: "warn", Format: "console", File: path})
	require.NoError(t, err)
	child := logger.Named("pipeline")

	child.Info("hidden")
	child.Warn("shown")
	require.NoError(t, logger.SetLevel("info"))
	child.Info("now visible")
	require.Error(t, logger.SetLevel("chatty"))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
	assert.Contains(t, string(data), "now visible")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New("api", Config{Level: "loud"})
	require.Error(t, err)

	_, err = New("api", Config{Format: "xml"})
	require.Error(t, err)
}
