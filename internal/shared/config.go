package shared

import (
	"encoding/json"
	"os"
)

type AgentConfig struct {
	ServerURL      string `json:"server_url"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	CPUSampleMS    int    `json:"cpu_sample_ms"`
}

// LoadAgentConfig reads the agent config file, fills defaults and applies
// the FLEET_SERVER_URL / FLEET_API_TOKEN env overrides. An empty path
// yields a pure defaults-plus-env config.
func LoadAgentConfig(path string) (*AgentConfig, error) {
	c := &AgentConfig{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, c); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("FLEET_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("FLEET_API_TOKEN"); v != "" {
		c.APIKey = v
	}
	if c.ServerURL == "" {
		c.ServerURL = "http://127.0.0.1:8085"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 20
	}
	if c.CPUSampleMS <= 0 {
		c.CPUSampleMS = 1000
	}
	return c, nil
}

func SaveAgentConfig(path string, c *AgentConfig) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}
