package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"fleetscan/internal/shared"
)

// ErrNoAPIKey means the config carried no shared secret; the server would
// reject the POST anyway, so the agent refuses to send.
var ErrNoAPIKey = errors.New("no api key configured (set api_key or FLEET_API_TOKEN)")

type Agent struct {
	Cfg    *shared.AgentConfig
	Client *http.Client
	Log    zerolog.Logger
}

func New(cfg *shared.AgentConfig, log zerolog.Logger) *Agent {
	return &Agent{
		Cfg:    cfg,
		Client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		Log:    log,
	}
}

// Run takes one snapshot and posts it. No retry, no scheduling; cadence
// is the caller's problem (cron, a systemd timer, or by hand).
func (a *Agent) Run(ctx context.Context) error {
	if a.Cfg.APIKey == "" {
		return ErrNoAPIKey
	}

	a.Log.Info().Msg("collecting system snapshot")
	data, err := CollectSnapshot(ctx, time.Duration(a.Cfg.CPUSampleMS)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	resp, err := a.Send(ctx, data)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	a.Log.Info().
		Int64("id", resp.ID).
		Str("client_ip", resp.ClientIP).
		Int("processes", len(data.Processes)).
		Int("users", len(data.Users)).
		Msg("snapshot accepted")
	return nil
}

// Send posts one snapshot payload and decodes the server's response.
func (a *Agent) Send(ctx context.Context, data *shared.AgentData) (*shared.IngestResponse, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Cfg.ServerURL+"/api/agent_data", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", a.Cfg.APIKey)

	httpResp, err := a.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("server returned %d: %s", httpResp.StatusCode, bytes.TrimSpace(respBody))
	}

	var resp shared.IngestResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("bad server response: %w", err)
	}
	return &resp, nil
}
