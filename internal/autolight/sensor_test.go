package autolight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-autolight/pkg/config"
)

// fakeCoordinator records the facade calls a sensor makes
type fakeCoordinator struct {
	calls     []string
	ambient   Evaluation
	requested []*AmbientSensor
}

func (c *fakeCoordinator) RequestTimerStart(ctx context.Context) {
	c.calls = append(c.calls, "request_timer")
}

func (c *fakeCoordinator) CancelTimer() {
	c.calls = append(c.calls, "cancel_timer")
}

func (c *fakeCoordinator) TurnOn(ctx context.Context, cause string) {
	c.calls = append(c.calls, "turn_on")
}

func (c *fakeCoordinator) EvaluateAmbient(ctx context.Context, sensor *AmbientSensor) Evaluation {
	c.requested = append(c.requested, sensor)
	return c.ambient
}

func (c *fakeCoordinator) DisplayName(ctx context.Context, entityID string) string {
	return entityID
}

func buildSensor(t *testing.T, rule config.SensorRule, coord Coordinator, states stateReader) Sensor {
	t.Helper()
	kind, err := ParseSensorKind(rule.Type)
	require.NoError(t, err)
	s, err := newSensor(kind, rule, coord, states, testLogger())
	require.NoError(t, err)
	return s
}

func TestParseSensorKind(t *testing.T) {
	tests := []struct {
		in      string
		want    SensorKind
		wantErr bool
	}{
		{"motion", KindMotion, false},
		{"Motion", KindMotion, false},
		{" DOOR ", KindDoor, false},
		{"window", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSensorKind(tt.in)
			if tt.wantErr {
				var unsupported *UnsupportedSensorTypeError
				require.True(t, errors.As(err, &unsupported))
				assert.Equal(t, tt.in, unsupported.Type)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMotionSensor_Transitions(t *testing.T) {
	tests := []struct {
		name     string
		dark     bool
		previous string
		current  string
		want     []string
	}{
		{"occupied and dark", true, "off", "on", []string{"turn_on", "cancel_timer"}},
		{"occupied but bright", false, "off", "on", nil},
		{"unoccupied", true, "on", "off", []string{"request_timer"}},
		{"unoccupied while bright", false, "on", "off", []string{"request_timer"}},
		{"unavailable counts as unoccupied", true, "on", "unavailable", []string{"request_timer"}},
		{"duplicate on", true, "on", "on", nil},
		{"duplicate off", true, "off", "off", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &fakeCoordinator{ambient: FakeResult(tt.dark)}
			s := buildSensor(t, config.SensorRule{Type: "motion", EntityID: hallMotion}, coord, newFakePlatform())

			s.OnOccupancyChanged(context.Background(), tt.previous, tt.current)
			assert.Equal(t, tt.want, coord.calls)
		})
	}
}

func TestDoorSensor_Transitions(t *testing.T) {
	tests := []struct {
		name     string
		dark     bool
		previous string
		current  string
		want     []string
	}{
		{"open and dark", true, "off", "on", []string{"turn_on", "request_timer"}},
		{"open but bright", false, "off", "on", nil},
		{"closed", true, "on", "off", nil},
		{"duplicate", true, "on", "on", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &fakeCoordinator{ambient: FakeResult(tt.dark)}
			s := buildSensor(t, config.SensorRule{Type: "door", EntityID: frontDoor}, coord, newFakePlatform())

			s.OnOccupancyChanged(context.Background(), tt.previous, tt.current)
			assert.Equal(t, tt.want, coord.calls)
		})
	}
}

func TestMotionSensor_HoldLightOn(t *testing.T) {
	tests := []struct {
		name  string
		state string
		set   bool
		dark  bool
		want  bool
	}{
		{"tripped and dark", "on", true, true, true},
		{"tripped but bright", "on", true, false, false},
		{"clear", "off", true, true, false},
		{"state unreadable", "", false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newFakePlatform()
			if tt.set {
				host.states[hallMotion] = tt.state
			}
			coord := &fakeCoordinator{ambient: FakeResult(tt.dark)}
			s := buildSensor(t, config.SensorRule{Type: "motion", EntityID: hallMotion}, coord, host)

			assert.Equal(t, tt.want, s.HoldLightOn(context.Background()))
		})
	}
}

func TestDoorSensor_NeverHolds(t *testing.T) {
	host := newFakePlatform()
	coord := &fakeCoordinator{ambient: FakeResult(true)}
	s := buildSensor(t, config.SensorRule{Type: "door", EntityID: frontDoor}, coord, host)

	for _, state := range []string{"on", "off", "open", "closed"} {
		host.states[frontDoor] = state
		assert.False(t, s.HoldLightOn(context.Background()), state)
	}
}

func TestSensor_AmbientResolution(t *testing.T) {
	coord := &fakeCoordinator{ambient: FakeResult(true)}

	own := buildSensor(t, config.SensorRule{
		Type:        "motion",
		EntityID:    hallMotion,
		LightSensor: &config.LightSensorRule{EntityID: hallLux, Threshold: 30},
	}, coord, newFakePlatform())
	own.OnOccupancyChanged(context.Background(), "off", "on")

	fallback := buildSensor(t, config.SensorRule{Type: "motion", EntityID: stairs}, coord, newFakePlatform())
	fallback.OnOccupancyChanged(context.Background(), "off", "on")

	require.Len(t, coord.requested, 2)
	require.NotNil(t, coord.requested[0])
	assert.Equal(t, AmbientSensor{EntityID: hallLux, Threshold: 30}, *coord.requested[0])
	assert.Nil(t, coord.requested[1], "nil delegates to the global fallback")
}
