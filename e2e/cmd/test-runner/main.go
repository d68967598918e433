package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/saaga0h/jeeves-autolight/e2e/internal/executor"
	"github.com/saaga0h/jeeves-autolight/e2e/internal/reporter"
	"github.com/saaga0h/jeeves-autolight/e2e/internal/scenario"
	"github.com/saaga0h/jeeves-autolight/pkg/config"
	"github.com/saaga0h/jeeves-autolight/pkg/mqtt"
	"github.com/saaga0h/jeeves-autolight/pkg/postgres"
	"github.com/saaga0h/jeeves-autolight/pkg/redis"
)

func main() {
	cfg := config.NewConfig()
	cfg.ServiceName = "autolight-test-runner"
	cfg.LoadFromEnv()

	fs := pflag.NewFlagSet("test-runner", pflag.ExitOnError)
	cfg.RegisterFlags(fs)
	scenarioPath := fs.String("scenario", "", "Path to YAML scenario file (required)")
	outputDir := fs.String("output-dir", "./test-output", "Output directory for test artifacts")
	fs.Parse(os.Args[1:])

	if *scenarioPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --scenario is required\n")
		fs.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	logger.Info("Loading scenario", "path", *scenarioPath)
	scen, err := scenario.LoadScenario(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load scenario: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mqttClient := mqtt.NewClient(cfg, logger)
	if err := mqttClient.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to MQTT: %v\n", err)
		os.Exit(1)
	}
	defer mqttClient.Disconnect()

	redisClient := redis.NewClient(cfg, logger)
	if err := redisClient.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to ping Redis: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	var pgClient postgres.Client
	if cfg.PostgresEnabled() {
		pg := postgres.NewClient(cfg, logger)
		if err := pg.Connect(ctx); err != nil {
			logger.Warn("Postgres unavailable, postgres expectations will fail", "error", err)
		} else {
			defer pg.Disconnect()
			pgClient = pg
		}
	}

	runner := executor.NewRunner(mqttClient, redisClient, pgClient, logger)
	result, timelineEvents, err := runner.Run(ctx, scen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Test execution failed: %v\n", err)
		os.Exit(1)
	}

	name := strings.TrimSuffix(filepath.Base(*scenarioPath), filepath.Ext(*scenarioPath))

	timeline := reporter.GenerateTimeline(result, timelineEvents)
	fmt.Println(timeline)

	timelinePath := filepath.Join(*outputDir, "timelines", name+".txt")
	if err := reporter.SaveTimeline(timeline, timelinePath); err != nil {
		logger.Warn("Failed to save timeline", "error", err)
	}

	capturePath := filepath.Join(*outputDir, "captures", name+".json")
	if err := runner.SaveCapture(capturePath); err != nil {
		logger.Warn("Failed to save capture", "error", err)
	}

	summaryPath := filepath.Join(*outputDir, "summaries", name+".json")
	if err := reporter.SaveSummary(result, summaryPath); err != nil {
		logger.Warn("Failed to save summary", "error", err)
	}

	if !result.Passed {
		os.Exit(1)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
