package shared

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAgentConfigDefaults(t *testing.T) {
	cfg, err := LoadAgentConfig("")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8085", cfg.ServerURL)
	assert.Equal(t, 20, cfg.TimeoutSeconds)
	assert.Equal(t, 1000, cfg.CPUSampleMS)
}

func TestLoadAgentConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	require.NoError(t, SaveAgentConfig(path, &AgentConfig{
		ServerURL: "http://collector:8085",
		APIKey:    "file-key",
	}))

	t.Setenv("FLEET_API_TOKEN", "env-key")

	cfg, err := LoadAgentConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://collector:8085", cfg.ServerURL)
	assert.Equal(t, "env-key", cfg.APIKey, "env token overrides the file")
	assert.Equal(t, 20, cfg.TimeoutSeconds)
}

func TestLoadAgentConfigMissingFile(t *testing.T) {
	_, err := LoadAgentConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
