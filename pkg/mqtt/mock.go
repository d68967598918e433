package mqtt

import (
	"context"
	"strings"
	"sync"
)

// PublishedMessage is a message captured by MockClient
type PublishedMessage struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// MockClient is an in-memory Client for tests. Published messages are
// recorded, and Deliver feeds messages to matching subscriptions.
type MockClient struct {
	mu            sync.Mutex
	connected     bool
	subscriptions map[string]MessageHandler
	published     []PublishedMessage

	ConnectErr   error
	SubscribeErr error
	PublishErr   error
}

// NewMockClient creates a disconnected MockClient
func NewMockClient() *MockClient {
	return &MockClient{subscriptions: make(map[string]MessageHandler)}
}

func (m *MockClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.connected = true
	return nil
}

func (m *MockClient) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubscribeErr != nil {
		return m.SubscribeErr
	}
	m.subscriptions[topic] = handler
	return nil
}

func (m *MockClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, topic)
	return nil
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.published = append(m.published, PublishedMessage{
		Topic:    topic,
		QoS:      qos,
		Retained: retained,
		Payload:  append([]byte(nil), payload...),
	})
	return nil
}

func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Subscribed reports whether a subscription for the exact topic filter exists
func (m *MockClient) Subscribed(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subscriptions[topic]
	return ok
}

// Published returns a copy of every published message
func (m *MockClient) Published() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedMessage, len(m.published))
	copy(out, m.published)
	return out
}

// PublishedTo returns the messages published on topic
func (m *MockClient) PublishedTo(topic string) []PublishedMessage {
	var out []PublishedMessage
	for _, p := range m.Published() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// Reset drops the recorded publications
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// Deliver hands a message to every subscription whose filter matches topic.
// It returns the number of handlers invoked.
func (m *MockClient) Deliver(topic string, payload []byte, retained bool) int {
	m.mu.Lock()
	var handlers []MessageHandler
	for filter, h := range m.subscriptions {
		if TopicMatches(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	m.mu.Unlock()

	msg := &mockMessage{topic: topic, payload: payload, retained: retained}
	for _, h := range handlers {
		h(msg)
	}
	return len(handlers)
}

// TopicMatches reports whether topic matches an MQTT filter with + and # wildcards
func TopicMatches(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, part := range f {
		if part == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if part != "+" && part != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}

type mockMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func (m *mockMessage) Topic() string   { return m.topic }
func (m *mockMessage) Payload() []byte { return m.payload }
func (m *mockMessage) Retained() bool  { return m.retained }
func (m *mockMessage) Ack()            {}
