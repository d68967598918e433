// Package platform is the host the automations run on: it mirrors entity
// state published over MQTT into Redis, dispatches state changes to
// subscribers, publishes light commands and runs delayed actions.
//
// Every subscriber callback and every scheduled action runs on a single
// event-loop goroutine, one at a time. Code running on the loop must not
// call Invoke.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/saaga0h/jeeves-autolight/pkg/mqtt"
	"github.com/saaga0h/jeeves-autolight/pkg/redis"
)

var (
	// ErrHubNotStarted is returned by operations that need the event loop
	ErrHubNotStarted = errors.New("platform hub not started")
	// ErrHubStopped is returned when the event loop has exited
	ErrHubStopped = errors.New("platform hub stopped")
	// ErrEmptyEntityID is returned for subscriptions without an entity
	ErrEmptyEntityID = errors.New("entity id is required")
)

const eventQueueSize = 256

// Commands are fire-and-forget: QoS 0 never waits on the broker from the loop
const commandQoS byte = 0

// StateHandler receives the previous and current state of an entity
type StateHandler = func(ctx context.Context, previous, current string)

// Hub implements the automation host on top of MQTT and Redis
type Hub struct {
	mqtt   mqtt.Client
	redis  redis.Client
	source string
	logger *slog.Logger
	now    func() time.Time

	events  chan func(ctx context.Context)
	done    chan struct{}
	started atomic.Bool

	mu       sync.RWMutex
	handlers map[string][]StateHandler

	// Last state seen per entity; only touched on the loop
	lastKnown map[string]string

	pendingTimers atomic.Int64
	dispatched    atomic.Int64
}

// NewHub creates a hub; source identifies this service in published commands
func NewHub(mqttClient mqtt.Client, redisClient redis.Client, source string, logger *slog.Logger) *Hub {
	return &Hub{
		mqtt:      mqttClient,
		redis:     redisClient,
		source:    source,
		logger:    logger,
		now:       time.Now,
		events:    make(chan func(ctx context.Context), eventQueueSize),
		done:      make(chan struct{}),
		handlers:  make(map[string][]StateHandler),
		lastKnown: make(map[string]string),
	}
}

// Start launches the event loop and subscribes to every entity state topic.
// The loop runs until ctx is cancelled.
func (h *Hub) Start(ctx context.Context) error {
	if !h.started.CompareAndSwap(false, true) {
		return fmt.Errorf("platform hub already started")
	}

	go h.loop(ctx)

	if err := h.mqtt.Subscribe(mqtt.TopicStateAll, 1, h.handleStateMessage); err != nil {
		return fmt.Errorf("failed to subscribe to entity states: %w", err)
	}

	h.logger.Info("Platform hub started", "topic", mqtt.TopicStateAll)
	return nil
}

// Done is closed once the event loop has exited
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) loop(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case fn := <-h.events:
			fn(ctx)
		case <-ctx.Done():
			h.logger.Info("Platform hub event loop stopping")
			return
		}
	}
}

// post queues fn on the event loop. It blocks while the queue is full and
// reports false once the loop has exited.
func (h *Hub) post(fn func(ctx context.Context)) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.events <- fn:
		return true
	case <-h.done:
		return false
	}
}

// Invoke runs fn on the event loop and waits for it to return
func (h *Hub) Invoke(ctx context.Context, fn func(ctx context.Context)) error {
	if !h.started.Load() {
		return ErrHubNotStarted
	}

	finished := make(chan struct{})
	if !h.post(func(loopCtx context.Context) {
		defer close(finished)
		fn(loopCtx)
	}) {
		return ErrHubStopped
	}

	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleStateMessage runs on the MQTT client goroutine and hands the update
// over to the loop
func (h *Hub) handleStateMessage(msg mqtt.Message) {
	entityID, err := mqtt.EntityFromStateTopic(msg.Topic())
	if err != nil {
		h.logger.Warn("Ignoring state message", "topic", msg.Topic(), "error", err)
		return
	}

	update := parseStateMessage(msg.Payload())
	if update.State == "" {
		h.logger.Warn("Ignoring empty state", "entity_id", entityID)
		return
	}
	retained := msg.Retained()

	h.logger.Debug("Received entity state",
		"entity_id", entityID,
		"state", update.State,
		"retained", retained)

	if !h.post(func(ctx context.Context) {
		h.applyState(ctx, entityID, update, retained)
	}) {
		h.logger.Debug("Hub stopped, dropping state", "entity_id", entityID)
	}
}

// applyState mirrors the update into Redis and dispatches a change event
// when the state string changed. Attribute-only updates are mirrored only.
// A retained message for an entity with no known previous state only seeds
// the mirror: it describes the world before we started, not a transition.
func (h *Hub) applyState(ctx context.Context, entityID string, update StateMessage, retained bool) {
	previous, known := h.previousState(ctx, entityID)

	now := h.now().UTC().Format(time.RFC3339)
	fields := []interface{}{
		redis.FieldState, update.State,
		redis.FieldLastUpdated, now,
	}
	if update.FriendlyName != "" {
		fields = append(fields, redis.FieldFriendlyName, update.FriendlyName)
	}
	if !known || previous != update.State {
		fields = append(fields, redis.FieldLastChanged, now)
	}
	if err := h.redis.HSet(ctx, redis.EntityKey(entityID), fields...); err != nil {
		h.logger.Error("Failed to mirror entity state", "entity_id", entityID, "error", err)
	}
	h.lastKnown[entityID] = update.State

	if !known && retained {
		return
	}
	if known && previous == update.State {
		return
	}
	h.dispatch(ctx, entityID, previous, update.State)
}

func (h *Hub) previousState(ctx context.Context, entityID string) (string, bool) {
	if state, ok := h.lastKnown[entityID]; ok {
		return state, true
	}
	state, err := h.redis.HGet(ctx, redis.EntityKey(entityID), redis.FieldState)
	if err != nil {
		return "", false
	}
	return state, true
}

// dispatch calls every handler of the entity in subscription order
func (h *Hub) dispatch(ctx context.Context, entityID, previous, current string) {
	h.mu.RLock()
	handlers := append([]StateHandler(nil), h.handlers[entityID]...)
	h.mu.RUnlock()

	for _, handler := range handlers {
		handler(ctx, previous, current)
		h.dispatched.Add(1)
	}
}

// SubscribeStateChange registers handler for state changes of entityID
func (h *Hub) SubscribeStateChange(entityID string, handler func(ctx context.Context, previous, current string)) error {
	if entityID == "" {
		return ErrEmptyEntityID
	}
	if !h.started.Load() {
		return ErrHubNotStarted
	}

	h.mu.Lock()
	h.handlers[entityID] = append(h.handlers[entityID], handler)
	h.mu.Unlock()

	h.logger.Debug("Subscribed to entity state", "entity_id", entityID)
	return nil
}

// GetState returns the mirrored state of an entity
func (h *Hub) GetState(ctx context.Context, entityID string) (string, error) {
	state, err := h.redis.HGet(ctx, redis.EntityKey(entityID), redis.FieldState)
	if err != nil {
		return "", fmt.Errorf("failed to get state of %s: %w", entityID, err)
	}
	return state, nil
}

// DisplayName returns the friendly name of an entity, or its id
func (h *Hub) DisplayName(ctx context.Context, entityID string) string {
	name, err := h.redis.HGet(ctx, redis.EntityKey(entityID), redis.FieldFriendlyName)
	if err != nil || name == "" {
		return entityID
	}
	return name
}

// SwitchOn publishes an "on" command for an entity
func (h *Hub) SwitchOn(ctx context.Context, entityID string) error {
	return h.publishCommand(entityID, "on", LightSettings{})
}

// SwitchOnWith publishes an "on" command carrying brightness and colour temperature
func (h *Hub) SwitchOnWith(ctx context.Context, entityID string, settings LightSettings) error {
	return h.publishCommand(entityID, "on", settings)
}

// SwitchOff publishes an "off" command for an entity
func (h *Hub) SwitchOff(ctx context.Context, entityID string) error {
	return h.publishCommand(entityID, "off", LightSettings{})
}

func (h *Hub) publishCommand(entityID, action string, settings LightSettings) error {
	cmd := CommandMessage{
		Action:    action,
		Source:    h.source,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	if settings.Brightness != nil {
		b := *settings.Brightness
		cmd.Brightness = &b
	}
	if settings.ColorTemp != nil {
		ct := *settings.ColorTemp
		cmd.ColorTemp = &ct
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	if err := h.mqtt.Publish(mqtt.CommandTopic(entityID), commandQoS, false, payload); err != nil {
		return fmt.Errorf("failed to publish %s command for %s: %w", action, entityID, err)
	}
	return nil
}

// ScheduleAfter runs action on the event loop once delay has elapsed. The
// returned cancel is idempotent; once it has been called on the loop the
// action is guaranteed not to run.
func (h *Hub) ScheduleAfter(delay time.Duration, action func(ctx context.Context)) (cancel func()) {
	id := uuid.New()
	var cancelled, finished atomic.Bool
	h.pendingTimers.Add(1)

	settle := func() {
		if finished.CompareAndSwap(false, true) {
			h.pendingTimers.Add(-1)
		}
	}

	timer := time.AfterFunc(delay, func() {
		posted := h.post(func(ctx context.Context) {
			if cancelled.Load() {
				return
			}
			settle()
			h.logger.Debug("Scheduled action firing", "timer_id", id)
			action(ctx)
		})
		if !posted {
			settle()
		}
	})

	h.logger.Debug("Scheduled action", "timer_id", id, "delay", delay)

	return func() {
		if cancelled.CompareAndSwap(false, true) {
			timer.Stop()
			settle()
			h.logger.Debug("Scheduled action cancelled", "timer_id", id)
		}
	}
}

// Stats is a snapshot of hub activity
type Stats struct {
	Subscriptions int   `json:"subscriptions"`
	PendingTimers int64 `json:"pending_timers"`
	Dispatched    int64 `json:"dispatched"`
}

// Stats returns counters for health reporting
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	subs := 0
	for _, hs := range h.handlers {
		subs += len(hs)
	}
	h.mu.RUnlock()

	return Stats{
		Subscriptions: subs,
		PendingTimers: h.pendingTimers.Load(),
		Dispatched:    h.dispatched.Load(),
	}
}
