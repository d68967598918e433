package autolight

import (
	"context"
	"time"
)

// Platform is the set of host capabilities the coordinator consumes. All
// callbacks handed to the platform must be invoked one at a time on a single
// event loop; the coordinator relies on that for its lock-free state.
type Platform interface {
	// SubscribeStateChange registers a handler for state changes of an entity
	SubscribeStateChange(entityID string, handler func(ctx context.Context, previous, current string)) error

	// GetState returns the current state string of an entity
	GetState(ctx context.Context, entityID string) (string, error)

	// SwitchOn and SwitchOff are idempotent device commands
	SwitchOn(ctx context.Context, entityID string) error
	SwitchOff(ctx context.Context, entityID string) error

	// ScheduleAfter runs action once after delay; the returned func cancels it
	ScheduleAfter(delay time.Duration, action func(ctx context.Context)) (cancel func())

	// DisplayName resolves a human-readable name, for logging only
	DisplayName(ctx context.Context, entityID string) string
}

// SwitchRecord describes one switch of a coordinator's light group
type SwitchRecord struct {
	AutoLight string
	Action    string
	Cause     string
	Lights    []string
	Timestamp time.Time
}

// Recorder receives every switch the coordinator performs
type Recorder interface {
	Record(ctx context.Context, rec SwitchRecord) error
}
