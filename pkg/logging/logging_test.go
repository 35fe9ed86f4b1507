package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONWithFields(t *testing.T) {
	out := filepath.Join(t.TempDir(), "facet.log")
	logger, err := New(Config{
		Level:      "debug",
		Format:     "json",
		OutputPath: out,
		Fields:     map[string]string{"service": "facet"},
	})
	require.NoError(t, err)

	logger.Debug("shape stored")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shape stored", entry["msg"])
	assert.Equal(t, "facet", entry["service"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	out := filepath.Join(t.TempDir(), "facet.log")
	logger, err := New(Config{Level: "loud", OutputPath: out})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNewDefault(t *testing.T) {
	assert.NotNil(t, NewDefault())
}
