// Package agent wires the autolight coordinators and colour controllers to
// MQTT, Redis and the optional Postgres journal.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/saaga0h/jeeves-autolight/internal/autolight"
	"github.com/saaga0h/jeeves-autolight/internal/colorcycle"
	"github.com/saaga0h/jeeves-autolight/internal/journal"
	"github.com/saaga0h/jeeves-autolight/internal/platform"
	"github.com/saaga0h/jeeves-autolight/pkg/config"
	"github.com/saaga0h/jeeves-autolight/pkg/mqtt"
	"github.com/saaga0h/jeeves-autolight/pkg/postgres"
	"github.com/saaga0h/jeeves-autolight/pkg/redis"
)

// Agent runs every automation of a rules file on one platform hub
type Agent struct {
	mqtt     mqtt.Client
	redis    redis.Client
	postgres postgres.Client
	cfg      *config.Config
	rules    *config.Rules
	logger   *slog.Logger

	hub     *platform.Hub
	history *journal.RedisSink

	// Only touched on the hub's event loop
	autoLights  []*autolight.AutoLight
	controllers []*colorcycle.Controller

	wg sync.WaitGroup
}

// NewAgent creates an agent. pgClient may be nil when the Postgres journal
// is disabled.
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, pgClient postgres.Client, cfg *config.Config, rules *config.Rules, logger *slog.Logger) *Agent {
	return &Agent{
		mqtt:     mqttClient,
		redis:    redisClient,
		postgres: pgClient,
		cfg:      cfg,
		rules:    rules,
		logger:   logger,
		hub:      platform.NewHub(mqttClient, redisClient, cfg.ServiceName, logger),
		history:  journal.NewRedisSink(redisClient, cfg.HistoryLength, cfg.HistoryTTL()),
	}
}

// Start connects the backends, builds every automation and blocks until
// ctx is cancelled
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting autolight agent",
		"service_name", a.cfg.ServiceName,
		"mqtt_broker", a.cfg.MQTTAddress(),
		"auto_lights", len(a.rules.AutoLights),
		"color_controllers", len(a.rules.ColorControllers))

	// Connect to MQTT broker
	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// Verify Redis connection
	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	recorder := journal.New(a.sinks(ctx)...)

	if err := a.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start platform hub: %w", err)
	}

	if err := a.buildAutomations(ctx, recorder); err != nil {
		return err
	}

	for _, c := range a.controllers {
		c := c
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			c.Run(ctx)
		}()
	}

	a.logger.Info("Autolight agent started and ready to receive state changes")

	// Block until context is cancelled
	<-ctx.Done()
	a.logger.Info("Autolight agent stopping")

	return nil
}

// sinks returns the journal sinks; Postgres problems only disable its sink
func (a *Agent) sinks(ctx context.Context) []journal.Sink {
	sinks := []journal.Sink{a.history}
	if a.postgres == nil {
		return sinks
	}

	if err := a.postgres.Connect(ctx); err != nil {
		a.logger.Warn("Postgres unavailable, switch log table disabled", "error", err)
		return sinks
	}
	pg := journal.NewPostgresSink(a.postgres)
	if err := pg.EnsureSchema(ctx); err != nil {
		a.logger.Warn("Failed to prepare switch log table, disabled", "error", err)
		return sinks
	}
	return append(sinks, pg)
}

// buildAutomations constructs every coordinator and controller on the event
// loop, so their subscriptions and startup recovery see a consistent state
func (a *Agent) buildAutomations(ctx context.Context, recorder autolight.Recorder) error {
	var buildErr error
	err := a.hub.Invoke(ctx, func(ctx context.Context) {
		for _, rule := range a.rules.AutoLights {
			al, err := autolight.New(ctx, rule, a.hub, a.logger, autolight.WithRecorder(recorder))
			if err != nil {
				buildErr = fmt.Errorf("failed to create auto light %s: %w", rule.Name, err)
				return
			}
			a.autoLights = append(a.autoLights, al)
		}

		for _, rule := range a.rules.ColorControllers {
			c, err := colorcycle.New(ctx, rule, a.cfg.Latitude, a.cfg.Longitude, a.hub, a.logger)
			if err != nil {
				buildErr = fmt.Errorf("failed to create color controller %s: %w", rule.Name, err)
				return
			}
			a.controllers = append(a.controllers, c)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to build automations: %w", err)
	}
	return buildErr
}

// Stop gracefully stops the agent
func (a *Agent) Stop() error {
	a.logger.Info("Stopping autolight agent")

	a.wg.Wait()

	// Disconnect from MQTT
	a.mqtt.Disconnect()

	var errs []error
	if a.postgres != nil {
		if err := a.postgres.Disconnect(); err != nil {
			a.logger.Error("Error closing Postgres connection", "error", err)
			errs = append(errs, err)
		}
	}

	// Close Redis connection
	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		errs = append(errs, err)
	}

	a.logger.Info("Autolight agent stopped")
	return errors.Join(errs...)
}

// Snapshot is the runtime state reported by the detailed health endpoint
type Snapshot struct {
	AutoLights       []autolight.Status `json:"auto_lights"`
	ColorControllers []ControllerStatus `json:"color_controllers"`
	Hub              platform.Stats     `json:"hub"`
}

// ControllerStatus is the last output of a colour controller
type ControllerStatus struct {
	Name       string `json:"name"`
	Brightness *int   `json:"brightness,omitempty"`
	ColorTemp  *int   `json:"color_temp,omitempty"`
}

// Snapshot collects the status of every automation on the event loop
func (a *Agent) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		AutoLights:       []autolight.Status{},
		ColorControllers: []ControllerStatus{},
	}
	err := a.hub.Invoke(ctx, func(ctx context.Context) {
		for _, al := range a.autoLights {
			snap.AutoLights = append(snap.AutoLights, al.Status())
		}
		for _, c := range a.controllers {
			cur := c.Current()
			snap.ColorControllers = append(snap.ColorControllers, ControllerStatus{
				Name:       c.Name(),
				Brightness: cur.Brightness,
				ColorTemp:  cur.ColorTemp,
			})
		}
	})
	if err != nil {
		return nil, err
	}
	snap.Hub = a.hub.Stats()
	return snap, nil
}

// History returns the most recent switches of an automation, newest first
func (a *Agent) History(ctx context.Context, autoLight string, limit int) ([]journal.Entry, error) {
	return a.history.Recent(ctx, autoLight, limit)
}
