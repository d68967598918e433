// Package colorcycle follows the sun with light brightness and colour
// temperature. Each channel fades between a nighttime and a daytime level,
// driven by sun elevation and bounded by configurable clock windows.
package colorcycle

import (
	"fmt"
	"math"

	"github.com/saaga0h/jeeves-autolight/pkg/config"
)

// Settings are the fade parameters of one channel. Times are seconds since
// local midnight, elevations and angles are degrees.
type Settings struct {
	SunriseEarliestEnd     float64
	SunriseLatestEnd       float64
	SunriseFadeTime        float64
	SunriseTargetElevation float64
	SunriseFadeAngle       float64

	SunsetEarliestEnd     float64
	SunsetLatestEnd       float64
	SunsetFadeTime        float64
	SunsetTargetElevation float64
	SunsetFadeAngle       float64
}

// SettingsFromRule converts a rules-file cycle into Settings
func SettingsFromRule(r config.CycleRule) (Settings, error) {
	var s Settings
	clocks := []struct {
		value string
		dst   *float64
	}{
		{r.SunriseEarliestEndTime, &s.SunriseEarliestEnd},
		{r.SunriseLatestEndTime, &s.SunriseLatestEnd},
		{r.SunsetEarliestEndTime, &s.SunsetEarliestEnd},
		{r.SunsetLatestEndTime, &s.SunsetLatestEnd},
	}
	for _, c := range clocks {
		secs, err := config.ParseClock(c.value)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid cycle settings: %w", err)
		}
		*c.dst = secs
	}

	s.SunriseFadeTime = r.SunriseFadeTime
	s.SunriseTargetElevation = r.SunriseTargetElevation
	s.SunriseFadeAngle = r.SunriseFadeAngle
	s.SunsetFadeTime = r.SunsetFadeTime
	s.SunsetTargetElevation = r.SunsetTargetElevation
	s.SunsetFadeAngle = r.SunsetFadeAngle
	return s, nil
}

// fadeWindow is a linear ramp from start to end
type fadeWindow struct {
	start float64
	end   float64
}

// at returns the position of x within the window, clamped to [0,1] and
// optionally inverted
func (w fadeWindow) at(x float64, invert bool) float64 {
	v := (x - w.start) / (w.end - w.start)
	v = math.Min(1, math.Max(0, v))
	if invert {
		return 1 - v
	}
	return v
}

// Engine maps time of day and sun elevation onto a fade value in [0,1],
// where 0 is night and 1 is day
type Engine struct {
	sunriseEarliest fadeWindow
	sunriseLatest   fadeWindow
	sunriseSun      fadeWindow

	sunsetEarliest fadeWindow
	sunsetLatest   fadeWindow
	sunsetSun      fadeWindow
}

// NewEngine precomputes the fade windows of s
func NewEngine(s Settings) *Engine {
	return &Engine{
		sunriseEarliest: fadeWindow{s.SunriseEarliestEnd - s.SunriseFadeTime, s.SunriseEarliestEnd},
		sunriseLatest:   fadeWindow{s.SunriseLatestEnd - s.SunriseFadeTime, s.SunriseLatestEnd},
		sunriseSun:      fadeWindow{s.SunriseTargetElevation - s.SunriseFadeAngle, s.SunriseTargetElevation},

		sunsetEarliest: fadeWindow{s.SunsetEarliestEnd - s.SunsetFadeTime, s.SunsetEarliestEnd},
		sunsetLatest:   fadeWindow{s.SunsetLatestEnd - s.SunsetFadeTime, s.SunsetLatestEnd},
		sunsetSun:      fadeWindow{s.SunsetTargetElevation + s.SunsetFadeAngle, s.SunsetTargetElevation},
	}
}

// Value returns the fade value. While the sun rises the sun-driven value is
// raised to at least the latest-end ramp and capped by the earliest-end ramp;
// while it sets the clock windows bound it the other way round.
func (e *Engine) Value(timeOfDay, elevation float64, rising bool) float64 {
	if rising {
		sun := e.sunriseSun.at(elevation, false)
		earliest := e.sunriseEarliest.at(timeOfDay, false)
		latest := e.sunriseLatest.at(timeOfDay, false)
		return math.Min(earliest, math.Max(latest, sun))
	}

	sun := e.sunsetSun.at(elevation, true)
	earliest := e.sunsetEarliest.at(timeOfDay, true)
	latest := e.sunsetLatest.at(timeOfDay, true)
	return math.Min(latest, math.Max(earliest, sun))
}

// Level interpolates between the nighttime and daytime levels, truncating
// toward zero
func Level(value float64, daytime, nighttime int) int {
	return int(float64(nighttime) + value*float64(daytime-nighttime))
}
