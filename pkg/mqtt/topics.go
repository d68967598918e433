package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout shared with the state bridge that mirrors the home-automation
// platform onto the broker.
const (
	// Entity state updates (input), one retained message per entity
	TopicStateBase = "automation/state"
	TopicStateAll  = "automation/state/+"

	// Device commands (output)
	TopicCommandBase = "automation/command"

	// Service availability
	TopicStatusBase = "automation/status"

	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// StateTopic returns the state topic for an entity
// Pattern: automation/state/{entity_id}
func StateTopic(entityID string) string {
	return fmt.Sprintf("%s/%s", TopicStateBase, entityID)
}

// CommandTopic returns the command topic for an entity
// Pattern: automation/command/{entity_id}
func CommandTopic(entityID string) string {
	return fmt.Sprintf("%s/%s", TopicCommandBase, entityID)
}

// AvailabilityTopic returns the retained online/offline topic for a service
// Pattern: automation/status/{service_name}
func AvailabilityTopic(serviceName string) string {
	return fmt.Sprintf("%s/%s", TopicStatusBase, serviceName)
}

// EntityFromStateTopic extracts the entity id from a state topic
func EntityFromStateTopic(topic string) (string, error) {
	entityID, ok := strings.CutPrefix(topic, TopicStateBase+"/")
	if !ok || entityID == "" || strings.Contains(entityID, "/") {
		return "", fmt.Errorf("invalid state topic: %s", topic)
	}
	return entityID, nil
}
