package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"fleetscan/internal/agent"
	"fleetscan/internal/shared"
)

func main() {
	configPath := flag.String("config", "", "path to agent config JSON (optional)")
	serverURL := flag.String("server", "", "server base URL (overrides config)")
	timeout := flag.Int("timeout", 0, "request timeout in seconds (overrides config)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := shared.LoadAgentConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *timeout > 0 {
		cfg.TimeoutSeconds = *timeout
	}

	a := agent.New(cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutSeconds+30)*time.Second)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("snapshot failed")
	}
}
