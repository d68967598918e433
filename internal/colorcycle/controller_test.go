package colorcycle

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-autolight/internal/platform"
	"github.com/saaga0h/jeeves-autolight/pkg/config"
)

type applied struct {
	entityID string
	settings platform.LightSettings
}

// fakeHost runs everything inline on the calling goroutine
type fakeHost struct {
	states    map[string]string
	handlers  map[string][]func(ctx context.Context, previous, current string)
	applied   []applied
	switchErr error
	invokes   int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		states:   make(map[string]string),
		handlers: make(map[string][]func(ctx context.Context, previous, current string)),
	}
}

func (f *fakeHost) SubscribeStateChange(entityID string, handler func(ctx context.Context, previous, current string)) error {
	f.handlers[entityID] = append(f.handlers[entityID], handler)
	return nil
}

func (f *fakeHost) GetState(ctx context.Context, entityID string) (string, error) {
	s, ok := f.states[entityID]
	if !ok {
		return "", errors.New("not found")
	}
	return s, nil
}

func (f *fakeHost) SwitchOnWith(ctx context.Context, entityID string, settings platform.LightSettings) error {
	if f.switchErr != nil {
		return f.switchErr
	}
	f.applied = append(f.applied, applied{entityID, settings})
	return nil
}

func (f *fakeHost) Invoke(ctx context.Context, fn func(ctx context.Context)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.invokes++
	fn(ctx)
	return nil
}

func (f *fakeHost) emit(entityID, previous, current string) {
	f.states[entityID] = current
	for _, h := range f.handlers[entityID] {
		h(context.Background(), previous, current)
	}
}

func intp(n int) *int { return &n }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func cycleRule(day, night int) *config.CycleRule {
	return &config.CycleRule{
		DaytimeLevel:           day,
		NighttimeLevel:         night,
		SunriseEarliestEndTime: "07:00",
		SunriseLatestEndTime:   "09:00",
		SunriseFadeTime:        3600,
		SunriseTargetElevation: 5,
		SunriseFadeAngle:       10,
		SunsetEarliestEndTime:  "18:00",
		SunsetLatestEndTime:    "22:00",
		SunsetFadeTime:         3600,
		SunsetTargetElevation:  0,
		SunsetFadeAngle:        10,
	}
}

func controllerRule() config.ColorControllerRule {
	return config.ColorControllerRule{
		Name:             "living",
		Lights:           []config.LightRef{{EntityID: "light.living"}, {EntityID: "light.reading"}},
		UpdateRate:       60,
		Brightness:       cycleRule(255, 80),
		ColorTemperature: cycleRule(5000, 2200),
	}
}

// At 19:00 with the sun at 5 degrees and setting, both channels sit halfway
func eveningOptions() []Option {
	return []Option{
		WithClock(func() time.Time { return time.Date(2025, 9, 1, 19, 0, 0, 0, time.UTC) }),
		WithSun(func(time.Time) (float64, bool) { return 5, false }),
	}
}

func TestController_UpdateAppliesToLightsThatAreOn(t *testing.T) {
	host := newFakeHost()
	host.states["light.living"] = "on"
	host.states["light.reading"] = "off"

	c, err := New(context.Background(), controllerRule(), 60.17, 24.94, host, testLogger(), eveningOptions()...)
	require.NoError(t, err)
	assert.Equal(t, "living", c.Name())

	c.Update(context.Background())

	want := platform.LightSettings{Brightness: intp(167), ColorTemp: intp(3600)}
	assert.Equal(t, want, c.Current())
	assert.Equal(t, []applied{{"light.living", want}}, host.applied)
}

func TestController_LightTurningOnIsCorrected(t *testing.T) {
	host := newFakeHost()
	host.states["light.living"] = "off"
	host.states["light.reading"] = "off"

	c, err := New(context.Background(), controllerRule(), 60.17, 24.94, host, testLogger(), eveningOptions()...)
	require.NoError(t, err)

	// Nothing is applied before the first update
	host.emit("light.reading", "off", "on")
	assert.Empty(t, host.applied)

	c.Update(context.Background())
	host.emit("light.reading", "on", "off")
	host.emit("light.reading", "off", "on")

	require.Len(t, host.applied, 1)
	assert.Equal(t, "light.reading", host.applied[0].entityID)
	assert.Equal(t, c.Current(), host.applied[0].settings)
}

func TestController_SingleChannel(t *testing.T) {
	host := newFakeHost()
	host.states["light.living"] = "on"
	host.states["light.reading"] = "on"

	rule := controllerRule()
	rule.ColorTemperature = nil

	c, err := New(context.Background(), rule, 60.17, 24.94, host, testLogger(), eveningOptions()...)
	require.NoError(t, err)
	c.Update(context.Background())

	require.Len(t, host.applied, 2)
	assert.Equal(t, platform.LightSettings{Brightness: intp(167)}, host.applied[0].settings)
}

func TestController_DaytimeAndNighttime(t *testing.T) {
	host := newFakeHost()
	host.states["light.living"] = "on"
	host.states["light.reading"] = "off"

	noon := []Option{
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }),
		WithSun(func(time.Time) (float64, bool) { return 45, false }),
	}
	c, err := New(context.Background(), controllerRule(), 0, 0, host, testLogger(), noon...)
	require.NoError(t, err)
	c.Update(context.Background())
	assert.Equal(t, platform.LightSettings{Brightness: intp(255), ColorTemp: intp(5000)}, c.Current())

	night := []Option{
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC) }),
		WithSun(func(time.Time) (float64, bool) { return -20, true }),
	}
	c, err = New(context.Background(), controllerRule(), 0, 0, host, testLogger(), night...)
	require.NoError(t, err)
	c.Update(context.Background())
	assert.Equal(t, platform.LightSettings{Brightness: intp(80), ColorTemp: intp(2200)}, c.Current())
}

func TestController_NighttimeLevelZero(t *testing.T) {
	host := newFakeHost()
	host.states["light.living"] = "on"
	host.states["light.reading"] = "off"

	rule := controllerRule()
	rule.Brightness = cycleRule(255, 0)
	rule.ColorTemperature = nil

	night := []Option{
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC) }),
		WithSun(func(time.Time) (float64, bool) { return -20, true }),
	}
	c, err := New(context.Background(), rule, 0, 0, host, testLogger(), night...)
	require.NoError(t, err)
	c.Update(context.Background())

	require.Len(t, host.applied, 1)
	got := host.applied[0].settings
	require.NotNil(t, got.Brightness, "a zero level is still a level")
	assert.Equal(t, 0, *got.Brightness)
	assert.Nil(t, got.ColorTemp)
}

func TestController_MissingLightIsNotFatal(t *testing.T) {
	host := newFakeHost()
	host.states["light.living"] = "on"

	c, err := New(context.Background(), controllerRule(), 60.17, 24.94, host, testLogger(), eveningOptions()...)
	require.NoError(t, err)
	c.Update(context.Background())

	assert.Len(t, host.applied, 1)
	assert.Len(t, host.handlers["light.reading"], 1)
}

func TestController_SwitchErrorIsLogged(t *testing.T) {
	host := newFakeHost()
	host.states["light.living"] = "on"
	host.states["light.reading"] = "on"
	host.switchErr = errors.New("broker gone")

	c, err := New(context.Background(), controllerRule(), 60.17, 24.94, host, testLogger(), eveningOptions()...)
	require.NoError(t, err)

	assert.NotPanics(t, func() { c.Update(context.Background()) })
	assert.Empty(t, host.applied)
}

func TestController_InvalidRule(t *testing.T) {
	host := newFakeHost()

	rule := controllerRule()
	rule.Brightness.SunriseEarliestEndTime = "7am"
	_, err := New(context.Background(), rule, 0, 0, host, testLogger())
	assert.Error(t, err)

	rule = controllerRule()
	rule.Brightness = nil
	rule.ColorTemperature = nil
	_, err = New(context.Background(), rule, 0, 0, host, testLogger())
	assert.Error(t, err)
}

func TestController_RunStopsWithContext(t *testing.T) {
	host := newFakeHost()
	host.states["light.living"] = "on"

	rule := controllerRule()
	c, err := New(context.Background(), rule, 60.17, 24.94, host, testLogger(), eveningOptions()...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, 0, host.invokes)
}
