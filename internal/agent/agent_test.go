package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-autolight/internal/platform"
	"github.com/saaga0h/jeeves-autolight/pkg/config"
	"github.com/saaga0h/jeeves-autolight/pkg/mqtt"
	"github.com/saaga0h/jeeves-autolight/pkg/redis"
)

const rulesYAML = `
auto_lights:
  - name: hallway
    lights:
      - entity_id: light.hall
    delay_seconds: 0
    sensors:
      - type: motion
        entity_id: binary_sensor.hall_motion
      - type: radar
        entity_id: binary_sensor.hall_radar
color_controllers:
  - name: living
    lights:
      - entity_id: light.living
    update_rate: 3600
    brightness:
      daytime_level: 255
      nighttime_level: 80
      sunrise_earliest_end_time: "07:00"
      sunrise_latest_end_time: "09:00"
      sunrise_fade_time: 3600
      sunrise_target_elevation: 5
      sunrise_fade_angle: 10
      sunset_earliest_end_time: "18:00"
      sunset_latest_end_time: "22:00"
      sunset_fade_time: 3600
      sunset_target_elevation: 0
      sunset_fade_angle: 10
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type harness struct {
	agent  *Agent
	mqtt   *mqtt.MockClient
	redis  *redis.MockClient
	cancel context.CancelFunc
	errs   chan error
}

func startAgent(t *testing.T) *harness {
	t.Helper()

	rules, err := config.LoadRulesFromBytes([]byte(rulesYAML))
	require.NoError(t, err)

	cfg := config.NewConfig()
	mq := mqtt.NewMockClient()
	rd := redis.NewMockClient()
	ctx := context.Background()
	require.NoError(t, rd.HSet(ctx, redis.EntityKey("light.hall"), redis.FieldState, "off", redis.FieldFriendlyName, "Hall"))
	require.NoError(t, rd.HSet(ctx, redis.EntityKey("light.living"), redis.FieldState, "off"))
	require.NoError(t, rd.HSet(ctx, redis.EntityKey("binary_sensor.hall_motion"), redis.FieldState, "off"))

	a := NewAgent(mq, rd, nil, cfg, rules, testLogger())

	runCtx, cancel := context.WithCancel(ctx)
	h := &harness{agent: a, mqtt: mq, redis: rd, cancel: cancel, errs: make(chan error, 1)}
	go func() {
		h.errs <- a.Start(runCtx)
	}()

	require.Eventually(t, func() bool {
		snap, err := a.Snapshot(ctx)
		// The first colour update has run once the controller reports a level
		return err == nil && len(snap.AutoLights) == 1 &&
			len(snap.ColorControllers) == 1 && snap.ColorControllers[0].Brightness != nil
	}, 2*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		<-h.errs
		_ = a.Stop()
	})
	return h
}

func (h *harness) commands(entityID string) []string {
	var actions []string
	for _, p := range h.mqtt.PublishedTo(mqtt.CommandTopic(entityID)) {
		var cmd platform.CommandMessage
		if err := json.Unmarshal(p.Payload, &cmd); err != nil {
			actions = append(actions, "invalid")
			continue
		}
		actions = append(actions, cmd.Action)
	}
	return actions
}

func TestAgent_MotionDrivesLights(t *testing.T) {
	h := startAgent(t)
	ctx := context.Background()

	assert.True(t, h.mqtt.IsConnected())
	assert.True(t, h.mqtt.Subscribed(mqtt.TopicStateAll))

	h.mqtt.Deliver(mqtt.StateTopic("binary_sensor.hall_motion"), []byte(`{"state":"on"}`), false)
	require.Eventually(t, func() bool {
		return len(h.commands("light.hall")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.mqtt.Deliver(mqtt.StateTopic("binary_sensor.hall_motion"), []byte(`{"state":"off"}`), false)
	require.Eventually(t, func() bool {
		return len(h.commands("light.hall")) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"on", "off"}, h.commands("light.hall"))

	snap, err := h.agent.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.AutoLights, 1)
	assert.Equal(t, "hallway", snap.AutoLights[0].Name)
	assert.False(t, snap.AutoLights[0].LightOn)
	assert.Equal(t, []string{"Motion:binary_sensor.hall_motion"}, snap.AutoLights[0].Sensors)

	history, err := h.agent.History(ctx, "hallway", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "off", history[0].Action)
	assert.Equal(t, "no occupancy", history[0].Cause)
	assert.Equal(t, "on", history[1].Action)
}

func TestAgent_ColorControllerAppliesWhenLightTurnsOn(t *testing.T) {
	h := startAgent(t)

	h.mqtt.Deliver(mqtt.StateTopic("light.living"), []byte(`{"state":"on"}`), false)
	require.Eventually(t, func() bool {
		return len(h.mqtt.PublishedTo(mqtt.CommandTopic("light.living"))) == 1
	}, 2*time.Second, 10*time.Millisecond)

	var cmd platform.CommandMessage
	require.NoError(t, json.Unmarshal(h.mqtt.PublishedTo(mqtt.CommandTopic("light.living"))[0].Payload, &cmd))
	assert.Equal(t, "on", cmd.Action)
	require.NotNil(t, cmd.Brightness)
	assert.GreaterOrEqual(t, *cmd.Brightness, 80)
	assert.LessOrEqual(t, *cmd.Brightness, 255)
	assert.Nil(t, cmd.ColorTemp)
}

func TestAgent_StartFailsWithoutMQTT(t *testing.T) {
	rules, err := config.LoadRulesFromBytes([]byte(rulesYAML))
	require.NoError(t, err)

	mq := mqtt.NewMockClient()
	mq.ConnectErr = errors.New("connection refused")
	a := NewAgent(mq, redis.NewMockClient(), nil, config.NewConfig(), rules, testLogger())

	err = a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MQTT")
}

func TestAgent_StartFailsWithoutRedis(t *testing.T) {
	rules, err := config.LoadRulesFromBytes([]byte(rulesYAML))
	require.NoError(t, err)

	rd := redis.NewMockClient()
	rd.Err = errors.New("connection refused")
	a := NewAgent(mqtt.NewMockClient(), rd, nil, config.NewConfig(), rules, testLogger())

	err = a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redis")
}

func TestAgent_SnapshotBeforeStart(t *testing.T) {
	rules, err := config.LoadRulesFromBytes([]byte(rulesYAML))
	require.NoError(t, err)

	a := NewAgent(mqtt.NewMockClient(), redis.NewMockClient(), nil, config.NewConfig(), rules, testLogger())
	_, err = a.Snapshot(context.Background())
	assert.True(t, errors.Is(err, platform.ErrHubNotStarted))
}
