package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	c := Empty()
	assert.Equal(t, ":3000", c.GetListen())
	assert.Equal(t, "temp", c.GetUploadDir())
	assert.Equal(t, "stl_storage", c.GetSTLDir())
	assert.Equal(t, "exports", c.GetExportsDir())
	assert.Equal(t, "info", c.GetLogLevel())
	assert.Equal(t, "json", c.GetLogFormat())
	assert.Equal(t, KernelBRep, c.GetKernel())
	assert.EqualValues(t, 100*1024*1024, c.GetMaxUploadBytes())
	assert.Equal(t, 5*time.Second, c.GetScriptTimeout())
	assert.False(t, c.GetDevelopment())
	assert.NoError(t, c.Validate())
}

func TestLoadPartialFile(t *testing.T) {
	path := writeFile(t, "facet.json", `{"listen": ":8080", "script_timeout": "250ms", "kernel": "sdfx"}`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.GetListen())
	assert.Equal(t, 250*time.Millisecond, c.GetScriptTimeout())
	assert.Equal(t, KernelSDFX, c.GetKernel())
	// Unset fields keep their defaults.
	assert.Equal(t, "stl_storage", c.GetSTLDir())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "facet.yaml", `{}`, ".json extension"},
		{"bad json", "facet.json", `{"listen":`, "parse config JSON"},
		{"bad timeout", "facet.json", `{"script_timeout": "soon"}`, "script_timeout"},
		{"negative upload limit", "facet.json", `{"max_upload_bytes": -1}`, "max_upload_bytes"},
		{"unknown kernel", "facet.json", `{"kernel": "occt"}`, "kernel"},
		{"bad log format", "facet.json", `{"log_format": "xml"}`, "log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadTooLarge(t *testing.T) {
	body := `{"listen": "` + strings.Repeat("x", maxFileSize) + `"}`
	_, err := Load(writeFile(t, "big.json", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestApplyEnv(t *testing.T) {
	c := Empty()
	c.SetListen(":9000")
	err := c.ApplyEnv(env(map[string]string{
		"FACET_LISTEN":           ":4000",
		"FACET_STL_DIR":          "/srv/stl",
		"FACET_MAX_UPLOAD_BYTES": "1024",
		"FACET_SCRIPT_TIMEOUT":   "2s",
		"FACET_DEV":              "true",
		"FACET_LOG_LEVEL":        "",
	}))
	require.NoError(t, err)

	got := map[string]any{
		"listen":  c.GetListen(),
		"stl":     c.GetSTLDir(),
		"upload":  c.GetMaxUploadBytes(),
		"timeout": c.GetScriptTimeout(),
		"dev":     c.GetDevelopment(),
		"level":   c.GetLogLevel(),
	}
	want := map[string]any{
		"listen":  ":4000",
		"stl":     "/srv/stl",
		"upload":  int64(1024),
		"timeout": 2 * time.Second,
		"dev":     true,
		"level":   "info",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyEnvErrors(t *testing.T) {
	for _, vars := range []map[string]string{
		{"FACET_MAX_UPLOAD_BYTES": "lots"},
		{"FACET_DEV": "maybe"},
		{"FACET_KERNEL": "occt"},
	} {
		assert.Error(t, Empty().ApplyEnv(env(vars)), "%v", vars)
	}
}
