// Package autolight fuses occupancy sensors into on/off decisions for a group
// of lights, with a debounced turn-off and an optional ambient-light filter.
//
// An AutoLight is not safe for concurrent use. The Platform it is built on
// must deliver every callback (state changes and timer firings) one at a
// time on a single event loop, and New must run on that loop as well.
package autolight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/jeeves-autolight/pkg/config"
)

// Light states as reported by the platform
const (
	StateOn  = "on"
	StateOff = "off"
)

// AutoLight coordinates the sensors, the debounce timer and the light group
// of one automation
type AutoLight struct {
	name          string
	lights        []string
	delay         time.Duration
	globalAmbient *AmbientSensor

	sensors []Sensor
	timer   debounceTimer
	lightOn bool

	host     Platform
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an AutoLight
type Option func(*AutoLight)

// WithRecorder records every switch of the light group
func WithRecorder(r Recorder) Option {
	return func(a *AutoLight) {
		a.recorder = r
	}
}

// WithClock overrides the clock used for switch records
func WithClock(now func() time.Time) Option {
	return func(a *AutoLight) {
		a.now = now
	}
}

// New builds the coordinator for one rule, subscribes its sensors and
// recovers the light state left behind by a restart. Unsupported sensor
// types are skipped with a warning; a failed subscription is fatal.
func New(ctx context.Context, rule config.AutoLightRule, host Platform, logger *slog.Logger, opts ...Option) (*AutoLight, error) {
	a := &AutoLight{
		name:          rule.Name,
		lights:        rule.LightEntityIDs(),
		delay:         rule.Delay(),
		globalAmbient: ambientFromRule(rule.LightSensor),
		host:          host,
		logger:        logger.With("autolight", rule.Name),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.logger.Info("Auto light initializing",
		"lights", len(a.lights),
		"delay_seconds", int(a.delay.Seconds()),
		"light_sensor", ambientName(a.globalAmbient))

	for _, l := range a.lights {
		a.checkEntityExists(ctx, l)
	}
	if a.globalAmbient != nil {
		a.checkEntityExists(ctx, a.globalAmbient.EntityID)
	}

	for _, sr := range rule.Sensors {
		kind, err := ParseSensorKind(sr.Type)
		if err != nil {
			var unsupported *UnsupportedSensorTypeError
			if errors.As(err, &unsupported) {
				a.logger.Warn("Specified sensor type not supported, skipping",
					"sensor_type", unsupported.Type,
					"entity_id", sr.EntityID)
				continue
			}
			return nil, err
		}

		sensor, err := newSensor(kind, sr, a, host, a.logger)
		if err != nil {
			return nil, err
		}
		if err := host.SubscribeStateChange(sensor.EntityID(), sensor.OnOccupancyChanged); err != nil {
			return nil, fmt.Errorf("failed to subscribe %s sensor %s: %w", sensor.TypeName(), sensor.EntityID(), err)
		}
		a.sensors = append(a.sensors, sensor)

		a.checkEntityExists(ctx, sr.EntityID)
		if sr.LightSensor != nil {
			a.checkEntityExists(ctx, sr.LightSensor.EntityID)
		}

		a.logger.Info("Initialized sensor",
			"sensor", sensor.EntityID(),
			"sensor_type", sensor.TypeName(),
			"light_sensor", ambientName(ambientFromRule(sr.LightSensor)))
	}

	a.recoverLightState(ctx)

	return a, nil
}

// recoverLightState treats a light left on before a restart like any other
// unoccupied transition
func (a *AutoLight) recoverLightState(ctx context.Context) {
	for _, l := range a.lights {
		state, err := a.host.GetState(ctx, l)
		if err != nil {
			continue
		}
		if state == StateOn {
			a.lightOn = true
			break
		}
	}

	if a.lightOn {
		a.logger.Info("Lights found on at startup, requesting turn-off timer")
		a.RequestTimerStart(ctx)
	}
}

func (a *AutoLight) checkEntityExists(ctx context.Context, entityID string) {
	if _, err := a.host.GetState(ctx, entityID); err != nil {
		a.logger.Warn("Entity missing or unavailable", "entity_id", entityID, "error", err)
	}
}

// RequestTimerStart implements Coordinator. Every sensor is polled; the
// first hold vote suppresses the timer, and that sensor will request the
// timer again once its own hold condition clears.
func (a *AutoLight) RequestTimerStart(ctx context.Context) {
	for _, s := range a.sensors {
		if s.HoldLightOn(ctx) {
			if a.timer.cancel() {
				a.logger.Debug("Pending turn-off cancelled by hold vote")
			}
			a.logger.Info("Sensor holds light on, turn-off timer not started",
				"sensor", s.EntityID(),
				"sensor_type", s.TypeName())
			return
		}
	}

	if a.delay <= 0 {
		a.timer.cancel()
		a.TurnOff(ctx, "no occupancy")
		return
	}

	a.timer.arm(a.host, a.delay, func(ctx context.Context) {
		a.TurnOff(ctx, "turn-off timer expired")
	})
	a.logger.Info("Turn off timer started", "delay_seconds", int(a.delay.Seconds()))
}

// CancelTimer implements Coordinator
func (a *AutoLight) CancelTimer() {
	if a.timer.cancel() {
		a.logger.Info("Turn off timer cancelled")
	}
}

// TurnOn implements Coordinator
func (a *AutoLight) TurnOn(ctx context.Context, cause string) {
	a.switchLights(ctx, StateOn, cause)
}

// TurnOff switches every light of the group off
func (a *AutoLight) TurnOff(ctx context.Context, cause string) {
	a.switchLights(ctx, StateOff, cause)
}

func (a *AutoLight) switchLights(ctx context.Context, action, cause string) {
	for _, l := range a.lights {
		var err error
		if action == StateOn {
			err = a.host.SwitchOn(ctx, l)
		} else {
			err = a.host.SwitchOff(ctx, l)
		}
		if err != nil {
			a.logger.Error("Failed to switch light",
				"entity_id", l,
				"action", action,
				"error", err)
			continue
		}
		a.logger.Info("Switched light",
			"action", action,
			"name", a.host.DisplayName(ctx, l),
			"cause", cause)
	}
	a.lightOn = action == StateOn

	if a.recorder != nil {
		rec := SwitchRecord{
			AutoLight: a.name,
			Action:    action,
			Cause:     cause,
			Lights:    a.lights,
			Timestamp: a.now(),
		}
		if err := a.recorder.Record(ctx, rec); err != nil {
			a.logger.Warn("Failed to record switch", "error", err)
		}
	}
}

// DisplayName implements Coordinator
func (a *AutoLight) DisplayName(ctx context.Context, entityID string) string {
	return a.host.DisplayName(ctx, entityID)
}

// Name returns the automation name
func (a *AutoLight) Name() string {
	return a.name
}

// LightOn reports whether the light group is considered on
func (a *AutoLight) LightOn() bool {
	return a.lightOn
}

// TimerState returns the debounce timer state
func (a *AutoLight) TimerState() TimerState {
	return a.timer.state
}

// Sensors returns the registered sensors
func (a *AutoLight) Sensors() []Sensor {
	return a.sensors
}

// Status is a point-in-time snapshot of a coordinator
type Status struct {
	Name    string   `json:"name"`
	LightOn bool     `json:"light_on"`
	Timer   string   `json:"timer"`
	Sensors []string `json:"sensors"`
}

// Status returns a snapshot for health reporting
func (a *AutoLight) Status() Status {
	sensors := make([]string, 0, len(a.sensors))
	for _, s := range a.sensors {
		sensors = append(sensors, fmt.Sprintf("%s:%s", s.TypeName(), s.EntityID()))
	}
	return Status{
		Name:    a.name,
		LightOn: a.lightOn,
		Timer:   a.timer.state.String(),
		Sensors: sensors,
	}
}

func ambientName(s *AmbientSensor) string {
	if s == nil {
		return "NONE"
	}
	return s.EntityID
}
