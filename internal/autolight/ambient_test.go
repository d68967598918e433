package autolight

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAmbientHallway(t *testing.T, host *fakePlatform, logger *slog.Logger) *AutoLight {
	t.Helper()
	host.states[hallLight] = StateOff
	host.states[lampLight] = StateOff
	host.states[hallMotion] = StateOff
	host.states[hallLux] = "0"

	a, err := New(context.Background(), hallwayRule(60, motion(hallMotion)), host, logger)
	require.NoError(t, err)
	host.reads = make(map[string]int)
	return a
}

func TestReadAmbientLevel_RetriesUntilNumeric(t *testing.T) {
	host := newFakePlatform()
	a := newAmbientHallway(t, host, testLogger())

	host.queued[hallLux] = []string{"unknown", "unknown", "3"}
	assert.Equal(t, 3, a.readAmbientLevel(context.Background(), hallLux))
	assert.Equal(t, 3, host.reads[hallLux])
}

func TestReadAmbientLevel_GivesUpAfterSixAttempts(t *testing.T) {
	host := newFakePlatform()
	capture := &captureHandler{}
	a := newAmbientHallway(t, host, slog.New(capture))

	host.queued[hallLux] = []string{"unknown", "unavailable", "", "n/a", "unknown", "unknown", "250"}
	assert.Equal(t, 0, a.readAmbientLevel(context.Background(), hallLux))
	assert.Equal(t, 6, host.reads[hallLux])
	assert.Equal(t, 1, capture.count(slog.LevelError))
}

func TestReadAmbientLevel_ReadErrorsCountAsAttempts(t *testing.T) {
	host := newFakePlatform()
	a := newAmbientHallway(t, host, testLogger())
	delete(host.states, hallLux)

	assert.Equal(t, 0, a.readAmbientLevel(context.Background(), hallLux))
	assert.Equal(t, 6, host.reads[hallLux])
}

func TestReadAmbientLevel_DecimalIsNotAReading(t *testing.T) {
	host := newFakePlatform()
	a := newAmbientHallway(t, host, testLogger())
	host.states[hallLux] = "12.5"

	assert.Equal(t, 0, a.readAmbientLevel(context.Background(), hallLux))
	assert.Equal(t, 6, host.reads[hallLux])

	host.reads = make(map[string]int)
	e := a.EvaluateAmbient(context.Background(), &AmbientSensor{EntityID: hallLux, Threshold: 10})
	assert.True(t, e.DarkEnough)
	require.False(t, e.Synthetic())
	assert.Equal(t, 0, *e.Value)
	assert.Equal(t, 6, host.reads[hallLux])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw    string
		want   int
		wantOK bool
	}{
		{"42", 42, true},
		{" 7 ", 7, true},
		{"-3", -3, true},
		{"12.5", 0, false},
		{"12.4", 0, false},
		{"unknown", 0, false},
		{"NaN", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseLevel(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateAmbient(t *testing.T) {
	host := newFakePlatform()
	host.names[hallLux] = "Hall illuminance"
	a := newAmbientHallway(t, host, testLogger())
	sensor := &AmbientSensor{EntityID: hallLux, Threshold: 40}

	t.Run("no sensor anywhere is synthetic dark", func(t *testing.T) {
		e := a.EvaluateAmbient(context.Background(), nil)
		assert.True(t, e.DarkEnough)
		assert.True(t, e.Synthetic())
	})

	t.Run("real evaluation", func(t *testing.T) {
		host.states[hallLux] = "41"
		e := a.EvaluateAmbient(context.Background(), sensor)
		assert.False(t, e.DarkEnough)
		require.False(t, e.Synthetic())
		assert.Equal(t, "Hall illuminance", *e.Sensor)
		assert.Equal(t, 41, *e.Value)
		assert.Equal(t, 40, *e.Threshold)
	})

	t.Run("global fallback", func(t *testing.T) {
		a.globalAmbient = sensor
		defer func() { a.globalAmbient = nil }()

		host.states[hallLux] = "40"
		e := a.EvaluateAmbient(context.Background(), nil)
		assert.True(t, e.DarkEnough)
		assert.False(t, e.Synthetic())
	})

	t.Run("bypassed while lights are on", func(t *testing.T) {
		a.TurnOn(context.Background(), "test")
		host.reads = make(map[string]int)
		host.states[hallLux] = "9999"

		e := a.EvaluateAmbient(context.Background(), sensor)
		assert.True(t, e.DarkEnough)
		assert.True(t, e.Synthetic())
		assert.Zero(t, host.reads[hallLux], "no read while lights are on")
	})
}
