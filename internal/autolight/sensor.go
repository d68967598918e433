package autolight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/saaga0h/jeeves-autolight/pkg/config"
)

// DefaultOnState is the occupancy state that means occupied / open
const DefaultOnState = "on"

// SensorKind is the closed set of supported occupancy sensor variants
type SensorKind int

const (
	KindMotion SensorKind = iota + 1
	KindDoor
)

func (k SensorKind) String() string {
	switch k {
	case KindMotion:
		return "Motion"
	case KindDoor:
		return "Door"
	default:
		return "Unknown"
	}
}

// UnsupportedSensorTypeError is returned for sensor type tags that are not
// one of the supported kinds
type UnsupportedSensorTypeError struct {
	Type string
}

func (e *UnsupportedSensorTypeError) Error() string {
	return fmt.Sprintf("sensor type not supported: %q", e.Type)
}

// ParseSensorKind maps a configured type tag onto a SensorKind, case-insensitively
func ParseSensorKind(s string) (SensorKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "motion":
		return KindMotion, nil
	case "door":
		return KindDoor, nil
	default:
		return 0, &UnsupportedSensorTypeError{Type: s}
	}
}

// AmbientSensor is an ambient-light entity with its darkness threshold
type AmbientSensor struct {
	EntityID  string
	Threshold int
}

func ambientFromRule(r *config.LightSensorRule) *AmbientSensor {
	if r == nil {
		return nil
	}
	return &AmbientSensor{EntityID: r.EntityID, Threshold: r.Threshold}
}

// Coordinator is the facade sensors use to drive the light group. Sensors
// never touch lights or the timer directly.
type Coordinator interface {
	RequestTimerStart(ctx context.Context)
	CancelTimer()
	TurnOn(ctx context.Context, cause string)
	// EvaluateAmbient checks the given ambient sensor, or the global
	// fallback when sensor is nil
	EvaluateAmbient(ctx context.Context, sensor *AmbientSensor) Evaluation
	DisplayName(ctx context.Context, entityID string) string
}

// Sensor is the contract shared by all occupancy sensor variants
type Sensor interface {
	// HoldLightOn is polled before the turn-off timer is armed
	HoldLightOn(ctx context.Context) bool
	// OnOccupancyChanged receives state changes of the occupancy entity
	OnOccupancyChanged(ctx context.Context, previous, current string)
	TypeName() string
	EntityID() string
}

type stateReader interface {
	GetState(ctx context.Context, entityID string) (string, error)
}

type occupancySensor struct {
	kind     SensorKind
	entityID string
	onState  string
	ambient  *AmbientSensor
	coord    Coordinator
	states   stateReader
	logger   *slog.Logger
}

func newOccupancySensor(kind SensorKind, rule config.SensorRule, coord Coordinator, states stateReader, logger *slog.Logger) occupancySensor {
	onState := rule.OnState
	if onState == "" {
		onState = DefaultOnState
	}
	return occupancySensor{
		kind:     kind,
		entityID: rule.EntityID,
		onState:  onState,
		ambient:  ambientFromRule(rule.LightSensor),
		coord:    coord,
		states:   states,
		logger:   logger.With("sensor", rule.EntityID, "sensor_type", kind.String()),
	}
}

// newSensor builds the sensor variant for kind
func newSensor(kind SensorKind, rule config.SensorRule, coord Coordinator, states stateReader, logger *slog.Logger) (Sensor, error) {
	base := newOccupancySensor(kind, rule, coord, states, logger)
	switch kind {
	case KindMotion:
		return &MotionSensor{base}, nil
	case KindDoor:
		return &DoorSensor{base}, nil
	default:
		return nil, &UnsupportedSensorTypeError{Type: kind.String()}
	}
}

func (s *occupancySensor) TypeName() string {
	return s.kind.String()
}

func (s *occupancySensor) EntityID() string {
	return s.entityID
}

func (s *occupancySensor) occupied(state string) bool {
	return state == s.onState
}

// changed filters duplicate and attribute-only events
func (s *occupancySensor) changed(ctx context.Context, previous, current string) bool {
	if previous == current {
		return false
	}
	s.logger.Info("Sensor state changed",
		"name", s.coord.DisplayName(ctx, s.entityID),
		"from", previous,
		"to", current)
	return true
}

// darkEnough resolves the ambient filter: the sensor's own light sensor if
// configured, otherwise the coordinator's global fallback
func (s *occupancySensor) darkEnough(ctx context.Context) bool {
	eval := s.coord.EvaluateAmbient(ctx, s.ambient)
	if !eval.DarkEnough {
		s.logger.Info("Too bright, not turning lights on", "evaluation", eval)
	} else {
		s.logger.Debug("Ambient light check passed", "evaluation", eval)
	}
	return eval.DarkEnough
}

// MotionSensor turns lights on while motion is detected and holds them on
// until motion clears
type MotionSensor struct {
	occupancySensor
}

// HoldLightOn is true while the sensor is tripped and the ambient filter passes
func (m *MotionSensor) HoldLightOn(ctx context.Context) bool {
	state, err := m.states.GetState(ctx, m.entityID)
	if err != nil {
		m.logger.Warn("Failed to read motion state", "error", err)
		return false
	}
	if !m.occupied(state) {
		return false
	}
	return m.coord.EvaluateAmbient(ctx, m.ambient).DarkEnough
}

// OnOccupancyChanged implements Sensor
func (m *MotionSensor) OnOccupancyChanged(ctx context.Context, previous, current string) {
	if !m.changed(ctx, previous, current) {
		return
	}

	if m.occupied(current) {
		if m.darkEnough(ctx) {
			m.coord.TurnOn(ctx, fmt.Sprintf("motion %s", m.entityID))
			m.coord.CancelTimer()
		}
		return
	}

	// Other sensors may still veto the timer
	m.coord.RequestTimerStart(ctx)
}

// DoorSensor turns lights on when a door opens and immediately starts the
// turn-off timer. It never holds lights on.
type DoorSensor struct {
	occupancySensor
}

// HoldLightOn implements Sensor
func (d *DoorSensor) HoldLightOn(ctx context.Context) bool {
	return false
}

// OnOccupancyChanged implements Sensor
func (d *DoorSensor) OnOccupancyChanged(ctx context.Context, previous, current string) {
	if !d.changed(ctx, previous, current) {
		return
	}

	// Closing a door does nothing
	if !d.occupied(current) {
		return
	}

	if d.darkEnough(ctx) {
		d.coord.TurnOn(ctx, fmt.Sprintf("door %s", d.entityID))
		d.coord.RequestTimerStart(ctx)
	}
}
