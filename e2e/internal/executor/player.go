package executor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/saaga0h/jeeves-autolight/e2e/internal/scenario"
	"github.com/saaga0h/jeeves-autolight/internal/platform"
	"github.com/saaga0h/jeeves-autolight/pkg/mqtt"
)

// Player publishes entity states the way the state bridge does: one
// retained JSON message per entity on automation/state/{entity_id}
type Player struct {
	client        mqtt.Client
	friendlyNames map[string]string
	logger        *slog.Logger
	now           func() time.Time
}

// NewPlayer creates a player on an already connected client
func NewPlayer(client mqtt.Client, logger *slog.Logger) *Player {
	return &Player{
		client:        client,
		friendlyNames: make(map[string]string),
		logger:        logger,
		now:           time.Now,
	}
}

// Seed publishes the initial states in entity order and remembers the
// friendly names for later events
func (p *Player) Seed(setup scenario.SetupConfig) error {
	for entity, name := range setup.FriendlyNames {
		p.friendlyNames[entity] = name
	}

	entities := make([]string, 0, len(setup.States))
	for entity := range setup.States {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	for _, entity := range entities {
		if err := p.PublishState(entity, setup.States[entity]); err != nil {
			return err
		}
	}
	return nil
}

// PublishState publishes a state for an entity
func (p *Player) PublishState(entityID, state string) error {
	payload, err := json.Marshal(platform.StateMessage{
		State:        state,
		FriendlyName: p.friendlyNames[entityID],
		Timestamp:    p.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	topic := mqtt.StateTopic(entityID)
	if err := p.client.Publish(topic, 1, true, payload); err != nil {
		return fmt.Errorf("failed to publish state of %s: %w", entityID, err)
	}

	p.logger.Debug("Published state", "topic", topic, "state", state)
	return nil
}
