// Package observer records the traffic an agent produces during a scenario
package observer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/saaga0h/jeeves-autolight/pkg/mqtt"
)

// CapturedMessage is a single MQTT message seen during observation
type CapturedMessage struct {
	Timestamp time.Time   `json:"timestamp"`
	Topic     string      `json:"topic"`
	Payload   interface{} `json:"payload"`
	Retained  bool        `json:"retained,omitempty"`
}

// Observer captures messages on a set of topic filters
type Observer struct {
	client  mqtt.Client
	filters []string
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	messages  []CapturedMessage
	startTime time.Time
}

// NewObserver creates an observer for the given filters on an already
// connected client
func NewObserver(client mqtt.Client, logger *slog.Logger, filters ...string) *Observer {
	if len(filters) == 0 {
		filters = []string{"#"}
	}
	return &Observer{
		client:  client,
		filters: filters,
		logger:  logger,
		now:     time.Now,
	}
}

// Start subscribes to every filter
func (o *Observer) Start() error {
	o.mu.Lock()
	o.startTime = o.now()
	o.mu.Unlock()

	for _, filter := range o.filters {
		if err := o.client.Subscribe(filter, 1, o.handleMessage); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", filter, err)
		}
		o.logger.Debug("Observer subscribed", "filter", filter)
	}
	return nil
}

// Stop removes the subscriptions
func (o *Observer) Stop() {
	for _, filter := range o.filters {
		if err := o.client.Unsubscribe(filter); err != nil {
			o.logger.Warn("Failed to unsubscribe observer", "filter", filter, "error", err)
		}
	}
}

func (o *Observer) handleMessage(msg mqtt.Message) {
	// Non-JSON payloads are kept as strings
	var payload interface{}
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		payload = string(msg.Payload())
	}

	captured := CapturedMessage{
		Timestamp: o.now(),
		Topic:     msg.Topic(),
		Payload:   payload,
		Retained:  msg.Retained(),
	}

	o.mu.Lock()
	o.messages = append(o.messages, captured)
	elapsed := captured.Timestamp.Sub(o.startTime).Seconds()
	o.mu.Unlock()

	o.logger.Debug("Captured message", "elapsed", fmt.Sprintf("%.2fs", elapsed), "topic", msg.Topic())
}

// MessagesByTopic returns the messages captured on topic, oldest first
func (o *Observer) MessagesByTopic(topic string) []CapturedMessage {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var matches []CapturedMessage
	for _, msg := range o.messages {
		if msg.Topic == topic {
			matches = append(matches, msg)
		}
	}
	return matches
}

// Messages returns a copy of every captured message
func (o *Observer) Messages() []CapturedMessage {
	o.mu.RLock()
	defer o.mu.RUnlock()

	messages := make([]CapturedMessage, len(o.messages))
	copy(messages, o.messages)
	return messages
}

// MessageCount returns the number of captured messages
func (o *Observer) MessageCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.messages)
}

// SaveCapture writes the captured messages to a JSON file
func (o *Observer) SaveCapture(filename string) error {
	data, err := json.MarshalIndent(o.Messages(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save capture: %w", err)
	}

	o.logger.Info("Saved capture", "messages", o.MessageCount(), "file", filename)
	return nil
}
