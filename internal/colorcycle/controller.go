package colorcycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/jeeves-autolight/internal/platform"
	"github.com/saaga0h/jeeves-autolight/pkg/config"
)

const stateOn = "on"

// Host is what a Controller needs from the platform. Invoke must run fn on
// the same event loop that delivers state changes.
type Host interface {
	SubscribeStateChange(entityID string, handler func(ctx context.Context, previous, current string)) error
	GetState(ctx context.Context, entityID string) (string, error)
	SwitchOnWith(ctx context.Context, entityID string, settings platform.LightSettings) error
	Invoke(ctx context.Context, fn func(ctx context.Context)) error
}

// channel is one faded attribute with its level range
type channel struct {
	engine    *Engine
	daytime   int
	nighttime int
}

func newChannel(r *config.CycleRule) (*channel, error) {
	if r == nil {
		return nil, nil
	}
	s, err := SettingsFromRule(*r)
	if err != nil {
		return nil, err
	}
	return &channel{
		engine:    NewEngine(s),
		daytime:   r.DaytimeLevel,
		nighttime: r.NighttimeLevel,
	}, nil
}

// SunFunc reports sun elevation in degrees and whether it is rising
type SunFunc func(t time.Time) (elevation float64, rising bool)

// Controller keeps the lights of one rule at the brightness and colour
// temperature that match the sun
type Controller struct {
	name       string
	lights     []string
	interval   time.Duration
	brightness *channel
	colorTemp  *channel

	host   Host
	logger *slog.Logger
	now    func() time.Time
	sun    SunFunc

	// Only touched on the event loop
	current platform.LightSettings
	ready   bool
}

// Option configures a Controller
type Option func(*Controller)

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithSun overrides the sun position source
func WithSun(sun SunFunc) Option {
	return func(c *Controller) {
		c.sun = sun
	}
}

// New builds a controller for rule and subscribes to its lights so a light
// that turns on is corrected right away. Missing lights are only logged.
func New(ctx context.Context, rule config.ColorControllerRule, lat, lon float64, host Host, logger *slog.Logger, opts ...Option) (*Controller, error) {
	brightness, err := newChannel(rule.Brightness)
	if err != nil {
		return nil, fmt.Errorf("color controller %s brightness: %w", rule.Name, err)
	}
	colorTemp, err := newChannel(rule.ColorTemperature)
	if err != nil {
		return nil, fmt.Errorf("color controller %s color temperature: %w", rule.Name, err)
	}
	if brightness == nil && colorTemp == nil {
		return nil, fmt.Errorf("color controller %s controls nothing", rule.Name)
	}

	c := &Controller{
		name:       rule.Name,
		lights:     rule.LightEntityIDs(),
		interval:   rule.UpdateInterval(),
		brightness: brightness,
		colorTemp:  colorTemp,
		host:       host,
		logger:     logger.With("color_controller", rule.Name),
		now:        time.Now,
		sun: func(t time.Time) (float64, bool) {
			return SunPosition(t, lat, lon)
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger.Info("Light color controller initializing",
		"lights", len(c.lights),
		"update_interval", c.interval)
	if brightness != nil {
		c.logger.Info("Brightness control initialized",
			"daytime_level", brightness.daytime,
			"nighttime_level", brightness.nighttime)
	}
	if colorTemp != nil {
		c.logger.Info("Color temperature control initialized",
			"daytime_kelvin", colorTemp.daytime,
			"nighttime_kelvin", colorTemp.nighttime)
	}

	for _, l := range c.lights {
		if _, err := host.GetState(ctx, l); err != nil {
			c.logger.Error("Entity missing or unavailable", "entity_id", l, "error", err)
		}
		light := l
		if err := host.SubscribeStateChange(light, func(ctx context.Context, previous, current string) {
			c.onLightChanged(ctx, light, current)
		}); err != nil {
			return nil, fmt.Errorf("failed to subscribe light %s: %w", light, err)
		}
	}

	return c, nil
}

// Name returns the controller name
func (c *Controller) Name() string {
	return c.name
}

// Current returns the settings computed by the last update
func (c *Controller) Current() platform.LightSettings {
	return c.current
}

// Run updates immediately and then on every interval until ctx is done
func (c *Controller) Run(ctx context.Context) {
	c.invokeUpdate(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.invokeUpdate(ctx)
		case <-ctx.Done():
			c.logger.Info("Light color controller stopping")
			return
		}
	}
}

func (c *Controller) invokeUpdate(ctx context.Context) {
	if err := c.host.Invoke(ctx, c.Update); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, platform.ErrHubStopped) {
			return
		}
		c.logger.Error("Failed to schedule color update", "error", err)
	}
}

// Update recomputes the settings from the sun and applies them to every
// light that is on. Must run on the event loop.
func (c *Controller) Update(ctx context.Context) {
	t := c.now()
	elevation, rising := c.sun(t)
	timeOfDay := TimeOfDay(t)

	var settings platform.LightSettings
	var levels []any
	if c.brightness != nil {
		value := c.brightness.engine.Value(timeOfDay, elevation, rising)
		level := Level(value, c.brightness.daytime, c.brightness.nighttime)
		settings.Brightness = &level
		levels = append(levels, "brightness", level)
		c.logger.Debug("Brightness engine",
			"time_of_day", int(timeOfDay),
			"elevation", elevation,
			"rising", rising,
			"value", value)
	}
	if c.colorTemp != nil {
		value := c.colorTemp.engine.Value(timeOfDay, elevation, rising)
		level := Level(value, c.colorTemp.daytime, c.colorTemp.nighttime)
		settings.ColorTemp = &level
		levels = append(levels, "color_temp", level)
		c.logger.Debug("Color temperature engine",
			"time_of_day", int(timeOfDay),
			"elevation", elevation,
			"rising", rising,
			"value", value)
	}

	c.current = settings
	c.ready = true
	c.logger.Info("Light settings updated", levels...)

	for _, l := range c.lights {
		state, err := c.host.GetState(ctx, l)
		if err != nil || state != stateOn {
			continue
		}
		c.apply(ctx, l)
	}
}

func (c *Controller) onLightChanged(ctx context.Context, entityID, current string) {
	if current != stateOn || !c.ready {
		return
	}
	c.logger.Info("Correcting light that turned on", "entity_id", entityID)
	c.apply(ctx, entityID)
}

func (c *Controller) apply(ctx context.Context, entityID string) {
	if err := c.host.SwitchOnWith(ctx, entityID, c.current); err != nil {
		c.logger.Error("Failed to apply light settings", "entity_id", entityID, "error", err)
	}
}
