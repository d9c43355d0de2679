package main

import (
	"agentchat-backend/internal/agents"
	"agentchat-backend/internal/api"
	"agentchat-backend/internal/chat"
	"agentchat-backend/internal/config"
	"agentchat-backend/internal/handlers"
	"agentchat-backend/internal/metrics"
	"agentchat-backend/internal/relay"
	"agentchat-backend/internal/services"
	"agentchat-backend/internal/store"
	"agentchat-backend/internal/store/memory"
	"agentchat-backend/internal/store/postgres"
	"agentchat-backend/internal/store/sqlite"
	"agentchat-backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Format:  cfg.LogFormat,
		Service: "agentchat-backend",
	})
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}
	log.Info("Configuration loaded", logger.StringField("driver", cfg.DatabaseDriver))

	// 2. Agent catalog
	catalog := agents.Default()
	if cfg.AgentsFile != "" {
		catalog, err = agents.LoadFile(cfg.AgentsFile)
		if err != nil {
			log.Error("Failed to load agent catalog", logger.StringField("path", cfg.AgentsFile), logger.ErrorField(err))
			os.Exit(1)
		}
	}
	log.Info("Agent catalog ready", logger.IntField("agents", len(catalog.All())))

	// 3. Storage
	st, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.Error("Failed to open storage", logger.ErrorField(err))
		os.Exit(1)
	}
	defer closeStore()

	// 4. Relay, sessions, services and handlers
	m := metrics.New()
	relayClient := relay.New(
		relay.WithHTTPClient(&http.Client{Timeout: cfg.RelayTimeout}),
		relay.WithMaxRetries(cfg.RelayMaxRetries),
		relay.WithRetryDelay(cfg.RelayRetryDelay),
		relay.WithMetrics(m),
		relay.WithLogger(log),
	)
	registry := chat.NewRegistry(catalog, st, relayClient, m, log,
		chat.WithIdleTTL(cfg.SessionIdleTTL),
		chat.WithMaxSessions(cfg.SessionMaxCount),
	)
	authService := services.NewAuthService(st, cfg, log)

	router := api.NewRouter(api.RouterDependencies{
		AuthHandler:   handlers.NewAuthHandler(authService, registry, log),
		AgentsHandler: handlers.NewAgentsHandler(catalog),
		ChatHandler:   handlers.NewChatHandlers(authService, registry, catalog, log),
		Metrics:       m,
		Config:        cfg,
		Logger:        log,
	})

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Long enough for a send that exhausts every relay retry.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Server listening", logger.StringField("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not listen", logger.StringField("port", cfg.HTTPPort), logger.ErrorField(err))
			os.Exit(1)
		}
	}()

	<-stopChan
	log.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server graceful shutdown failed", logger.ErrorField(err))
	}
	log.Info("Server shutdown complete.")
}

// openStore builds the configured backend. The returned func releases it.
func openStore(cfg *config.Config, log logger.Logger) (store.Store, func(), error) {
	switch cfg.DatabaseDriver {
	case config.DriverMemory:
		log.Warn("Using in-memory storage; data is lost on restart")
		return memory.New(), func() {}, nil

	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("SQLite store opened", logger.StringField("path", cfg.SQLitePath))
		return s, func() { _ = s.Close() }, nil

	default:
		dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dbCancel()

		dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("creating connection pool: %w", err)
		}
		if err := dbpool.Ping(dbCtx); err != nil {
			dbpool.Close()
			return nil, nil, fmt.Errorf("pinging database: %w", err)
		}
		pg := postgres.NewPostgresStore(dbpool, log)
		if err := pg.EnsureSchema(dbCtx); err != nil {
			dbpool.Close()
			return nil, nil, err
		}
		log.Info("Postgres store initialized")
		return pg, dbpool.Close, nil
	}
}
