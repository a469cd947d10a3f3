package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SHOPFLOW_SETTINGS", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, "commerce", cfg.Ruleset)
	assert.Equal(t, "libsql", cfg.MemoryBackend)
	assert.Equal(t, "libsql", cfg.TraceRecorder)
	assert.Equal(t, "auto", cfg.ApprovalMode)
	assert.False(t, cfg.ForceRetrieval)
}

func TestLoadSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	data, err := json.Marshal(map[string]any{
		"max_retries":    3,
		"ruleset":        "default",
		"trace_recorder": "jsonl",
		"trace_path":     "/tmp/trace.jsonl",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("SHOPFLOW_SETTINGS", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "default", cfg.Ruleset)
	assert.Equal(t, "jsonl", cfg.TraceRecorder)
}

func TestEnvOverridesSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_retries": 3}`), 0o644))
	t.Setenv("SHOPFLOW_SETTINGS", path)
	t.Setenv("WORKFLOW_MAX_RETRIES", "5")
	t.Setenv("FORCE_RAG", "1")
	t.Setenv("GUARDRAIL_BLOCKLIST", "(?i)ssn, credit card ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.True(t, cfg.ForceRetrieval)
	assert.Equal(t, []string{"(?i)ssn", "credit card"}, cfg.GuardrailBlocklist)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SHOPFLOW_SETTINGS", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("RULESET", "casino")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ruleset")
}

func TestValidateRequiresPathForBackend(t *testing.T) {
	cfg := defaultConfig()
	cfg.MemoryDBPath = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MemoryDBPath")
}
