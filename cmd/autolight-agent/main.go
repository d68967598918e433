package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/saaga0h/jeeves-autolight/internal/agent"
	"github.com/saaga0h/jeeves-autolight/pkg/config"
	"github.com/saaga0h/jeeves-autolight/pkg/health"
	"github.com/saaga0h/jeeves-autolight/pkg/mqtt"
	"github.com/saaga0h/jeeves-autolight/pkg/postgres"
	"github.com/saaga0h/jeeves-autolight/pkg/redis"
)

const defaultHistoryLimit = 20

func main() {
	// Load configuration with hierarchy: defaults → env → flags
	cfg := config.NewConfig()
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		logger.Error("Failed to load rules", "rules_file", cfg.RulesFile, "error", err)
		os.Exit(1)
	}

	logger.Info("Starting J.E.E.V.E.S. Autolight Agent",
		"version", "1.0",
		"service_name", cfg.ServiceName,
		"mqtt_broker", cfg.MQTTAddress(),
		"redis_host", cfg.RedisAddress(),
		"postgres_enabled", cfg.PostgresEnabled(),
		"rules_file", cfg.RulesFile,
		"log_level", cfg.LogLevel)

	// Set up context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize MQTT client
	mqttClient := mqtt.NewClient(cfg, logger)

	// Initialize Redis client
	redisClient := redis.NewClient(cfg, logger)

	// Postgres backs the optional switch log table
	var pgClient postgres.Client
	healthOpts := []health.Option{}
	if cfg.PostgresEnabled() {
		pgClient = postgres.NewClient(cfg, logger)
		healthOpts = append(healthOpts, health.WithPostgres(pgClient))
	}

	// Create autolight agent
	a := agent.NewAgent(mqttClient, redisClient, pgClient, cfg, rules, logger)

	// Start health check server
	healthOpts = append(healthOpts, health.WithDetails(func(ctx context.Context) (interface{}, error) {
		return a.Snapshot(ctx)
	}))
	healthChecker := health.NewChecker(mqttClient, redisClient, logger, healthOpts...)
	httpServer := startHealthServer(cfg.HealthPort, healthChecker, a, logger)

	// Start agent in a goroutine
	agentErr := make(chan error, 1)
	go func() {
		if err := a.Start(ctx); err != nil {
			logger.Error("Agent error", "error", err)
			agentErr <- err
		}
	}()

	// Wait for shutdown signal or agent error
	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
		exitCode = 1
	}

	// Graceful shutdown
	logger.Info("Initiating graceful shutdown")
	cancel()

	if err := a.Stop(); err != nil {
		logger.Error("Error stopping agent", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", "error", err)
	}

	logger.Info("Autolight agent shutdown complete")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func startHealthServer(port int, checker *health.Checker, a *agent.Agent, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())
	mux.HandleFunc("/api/history", historyHandler(a))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting health check server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", "error", err)
		}
	}()

	return server
}

// historyHandler serves the recent switches of one automation:
// GET /api/history?name=hallway&limit=20
func historyHandler(a *agent.Agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "Missing name parameter", http.StatusBadRequest)
			return
		}

		limit := defaultHistoryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, fmt.Sprintf("Invalid limit: %q", v), http.StatusBadRequest)
				return
			}
			limit = n
		}

		entries, err := a.History(r.Context(), name, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
