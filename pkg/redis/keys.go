package redis

import "fmt"

// Entity hash fields
const (
	FieldState        = "state"
	FieldFriendlyName = "friendly_name"
	FieldLastChanged  = "last_changed"
	FieldLastUpdated  = "last_updated"
)

// EntityKey returns the key for the mirrored state of an entity (hash)
// Pattern: entity:{entity_id}
func EntityKey(entityID string) string {
	return fmt.Sprintf("entity:%s", entityID)
}

// SwitchHistoryKey returns the key for an automation's recent switch history (list)
// Pattern: autolight:history:{name}
func SwitchHistoryKey(name string) string {
	return fmt.Sprintf("autolight:history:%s", name)
}
