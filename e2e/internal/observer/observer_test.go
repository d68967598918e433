package observer

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-autolight/pkg/mqtt"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestObserver_CapturesMatchingTopics(t *testing.T) {
	client := mqtt.NewMockClient()
	obs := NewObserver(client, quietLogger(), mqtt.TopicCommandBase+"/#")
	require.NoError(t, obs.Start())
	assert.True(t, client.Subscribed(mqtt.TopicCommandBase+"/#"))

	client.Deliver(mqtt.CommandTopic("light.hall"), []byte(`{"action":"on"}`), false)
	client.Deliver(mqtt.CommandTopic("light.desk"), []byte(`not json`), false)
	client.Deliver(mqtt.StateTopic("light.hall"), []byte(`{"state":"on"}`), false)

	assert.Equal(t, 2, obs.MessageCount())

	hall := obs.MessagesByTopic(mqtt.CommandTopic("light.hall"))
	require.Len(t, hall, 1)
	assert.Equal(t, map[string]interface{}{"action": "on"}, hall[0].Payload)

	desk := obs.MessagesByTopic(mqtt.CommandTopic("light.desk"))
	require.Len(t, desk, 1)
	assert.Equal(t, "not json", desk[0].Payload)

	obs.Stop()
	assert.False(t, client.Subscribed(mqtt.TopicCommandBase+"/#"))
}

func TestObserver_DefaultsToEverything(t *testing.T) {
	client := mqtt.NewMockClient()
	obs := NewObserver(client, quietLogger())
	require.NoError(t, obs.Start())

	client.Deliver("anything/at/all", []byte("1"), true)
	msgs := obs.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Retained)
	assert.Equal(t, float64(1), msgs[0].Payload)
}

func TestObserver_SubscribeError(t *testing.T) {
	client := mqtt.NewMockClient()
	client.SubscribeErr = errors.New("not authorised")

	err := NewObserver(client, quietLogger(), "automation/#").Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "automation/#")
}

func TestObserver_SaveCapture(t *testing.T) {
	client := mqtt.NewMockClient()
	obs := NewObserver(client, quietLogger())
	require.NoError(t, obs.Start())
	client.Deliver(mqtt.CommandTopic("light.hall"), []byte(`{"action":"off"}`), false)

	path := filepath.Join(t.TempDir(), "captures", "run.json")
	require.NoError(t, obs.SaveCapture(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved []CapturedMessage
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, mqtt.CommandTopic("light.hall"), saved[0].Topic)
}
