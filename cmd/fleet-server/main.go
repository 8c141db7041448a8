package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"fleetscan/internal/server"
)

func main() {
	log := newLogger(os.Getenv("FLEET_LOG_LEVEL"))

	// Shared secret agents must present (dev default is fine locally;
	// override in env)
	apiKey := os.Getenv("FLEET_API_KEY")
	if apiKey == "" {
		apiKey = "FLEET-DEV-CHANGE-ME"
	}

	addr := os.Getenv("FLEET_ADDR")
	if addr == "" {
		addr = ":8085"
	}

	dbPath := os.Getenv("FLEET_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/fleetscan.db"
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := os.MkdirAll(dbDir, 0700); err != nil {
			log.Fatal().Err(err).Str("dir", dbDir).Msg("failed to create db dir")
		}
	}

	db, err := server.OpenDB(dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("failed to open db")
	}
	defer db.Close()

	store := server.NewSQLiteStore(db)

	api := &server.API{
		Store:  store,
		APIKey: apiKey,
		Log:    log.With().Str("component", "api").Logger(),
	}

	r := mux.NewRouter()
	r.Use(api.RequestLogger)
	r.Use(server.MetricsMiddleware)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(api.RequireAPIKey)
	apiRouter.HandleFunc("/agent_data", api.IngestAgentData).Methods(http.MethodPost)
	apiRouter.HandleFunc("/agent_data", api.ListAgentData).Methods(http.MethodGet)
	apiRouter.HandleFunc("/agent_data/{id:[0-9]+}", api.GetAgentData).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", addr).Str("db", dbPath).Msg("fleet-server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
