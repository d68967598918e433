package autolight

import (
	"context"
	"strconv"
	"strings"
)

// ambientReadAttempts is the total number of reads before giving up
const ambientReadAttempts = 6

// EvaluateAmbient implements Coordinator. With no sensor and no global
// fallback configured, every check is dark enough. While the light group is
// on the sensor is not read at all: lit rooms read bright and there is
// nothing left to gate.
func (a *AutoLight) EvaluateAmbient(ctx context.Context, sensor *AmbientSensor) Evaluation {
	if sensor == nil {
		sensor = a.globalAmbient
	}
	if sensor == nil || a.lightOn {
		return FakeResult(true)
	}

	level := a.readAmbientLevel(ctx, sensor.EntityID)
	return Evaluate(a.host.DisplayName(ctx, sensor.EntityID), level, sensor.Threshold)
}

// readAmbientLevel reads a numeric light level, retrying without delay.
// Unreadable sensors degrade to 0 (full darkness) so that a broken sensor
// cannot keep the lights from ever turning on.
func (a *AutoLight) readAmbientLevel(ctx context.Context, entityID string) int {
	for attempt := 1; attempt <= ambientReadAttempts; attempt++ {
		raw, err := a.host.GetState(ctx, entityID)
		if err != nil {
			a.logger.Debug("Ambient light read failed",
				"entity_id", entityID,
				"attempt", attempt,
				"error", err)
			continue
		}

		if level, ok := parseLevel(raw); ok {
			return level
		}

		a.logger.Debug("Ambient light level not numeric",
			"entity_id", entityID,
			"attempt", attempt,
			"raw", raw)
	}

	a.logger.Error("Ambient light level unreadable, assuming darkness",
		"entity_id", entityID,
		"attempts", ambientReadAttempts)
	return 0
}

// parseLevel accepts integer readings only; anything else is a failed attempt
func parseLevel(raw string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return v, true
}
