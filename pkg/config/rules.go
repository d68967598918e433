package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Rules is the automation rules file: one entry per AutoLight coordinator and
// per solar colour controller.
type Rules struct {
	AutoLights       []AutoLightRule       `yaml:"auto_lights"`
	ColorControllers []ColorControllerRule `yaml:"color_controllers"`
}

// LightRef references one controllable light entity
type LightRef struct {
	EntityID string `yaml:"entity_id"`
}

// LightSensorRule configures an ambient-light entity and its darkness threshold
type LightSensorRule struct {
	EntityID  string `yaml:"entity_id"`
	Threshold int    `yaml:"threshold"`
}

// SensorRule configures one occupancy sensor. Type is kept as the raw string
// so that unsupported types can be skipped by the coordinator instead of
// failing the whole file.
type SensorRule struct {
	Type        string           `yaml:"type"`
	EntityID    string           `yaml:"entity_id"`
	OnState     string           `yaml:"on_state,omitempty"`
	LightSensor *LightSensorRule `yaml:"light_sensor,omitempty"`
}

// AutoLightRule configures one AutoLight coordinator
type AutoLightRule struct {
	Name         string           `yaml:"name"`
	Lights       []LightRef       `yaml:"lights"`
	DelaySeconds int              `yaml:"delay_seconds"`
	LightSensor  *LightSensorRule `yaml:"light_sensor,omitempty"`
	Sensors      []SensorRule     `yaml:"sensors"`
}

// Delay returns the turn-off delay as a duration
func (r AutoLightRule) Delay() time.Duration {
	return time.Duration(r.DelaySeconds) * time.Second
}

// LightEntityIDs returns the entity ids of all configured lights
func (r AutoLightRule) LightEntityIDs() []string {
	return entityIDs(r.Lights)
}

// CycleRule configures one solar fade channel (brightness or colour temperature)
type CycleRule struct {
	DaytimeLevel   int `yaml:"daytime_level"`
	NighttimeLevel int `yaml:"nighttime_level"`

	SunriseEarliestEndTime string  `yaml:"sunrise_earliest_end_time"`
	SunriseLatestEndTime   string  `yaml:"sunrise_latest_end_time"`
	SunriseFadeTime        float64 `yaml:"sunrise_fade_time"`
	SunriseTargetElevation float64 `yaml:"sunrise_target_elevation"`
	SunriseFadeAngle       float64 `yaml:"sunrise_fade_angle"`

	SunsetEarliestEndTime string  `yaml:"sunset_earliest_end_time"`
	SunsetLatestEndTime   string  `yaml:"sunset_latest_end_time"`
	SunsetFadeTime        float64 `yaml:"sunset_fade_time"`
	SunsetTargetElevation float64 `yaml:"sunset_target_elevation"`
	SunsetFadeAngle       float64 `yaml:"sunset_fade_angle"`
}

// ColorControllerRule configures one solar colour/brightness controller
type ColorControllerRule struct {
	Name             string     `yaml:"name"`
	Lights           []LightRef `yaml:"lights"`
	UpdateRate       int        `yaml:"update_rate"`
	Brightness       *CycleRule `yaml:"brightness,omitempty"`
	ColorTemperature *CycleRule `yaml:"color_temperature,omitempty"`
}

// UpdateInterval returns the refresh interval as a duration
func (r ColorControllerRule) UpdateInterval() time.Duration {
	return time.Duration(r.UpdateRate) * time.Second
}

// LightEntityIDs returns the entity ids of all configured lights
func (r ColorControllerRule) LightEntityIDs() []string {
	return entityIDs(r.Lights)
}

func entityIDs(lights []LightRef) []string {
	ids := make([]string, 0, len(lights))
	for _, l := range lights {
		ids = append(ids, l.EntityID)
	}
	return ids
}

// LoadRules loads the rules from a YAML file
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return LoadRulesFromBytes(data)
}

// LoadRulesFromBytes parses and validates rules from YAML data
func LoadRulesFromBytes(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	if err := ValidateRules(&rules); err != nil {
		return nil, fmt.Errorf("rules validation failed: %w", err)
	}

	return &rules, nil
}

// ValidateRules checks the structural requirements of a rules file
func ValidateRules(rules *Rules) error {
	if len(rules.AutoLights) == 0 && len(rules.ColorControllers) == 0 {
		return fmt.Errorf("no auto_lights or color_controllers defined")
	}

	seen := make(map[string]bool)
	for i, r := range rules.AutoLights {
		if r.Name == "" {
			return fmt.Errorf("auto_lights[%d]: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("auto_lights[%d]: duplicate name %q", i, r.Name)
		}
		seen[r.Name] = true

		if err := validateLights(r.Lights); err != nil {
			return fmt.Errorf("auto_lights[%s]: %w", r.Name, err)
		}
		if r.DelaySeconds < 0 {
			return fmt.Errorf("auto_lights[%s]: delay_seconds must not be negative", r.Name)
		}
		if r.LightSensor != nil && r.LightSensor.EntityID == "" {
			return fmt.Errorf("auto_lights[%s]: light_sensor.entity_id is required", r.Name)
		}
		for j, s := range r.Sensors {
			if s.EntityID == "" {
				return fmt.Errorf("auto_lights[%s].sensors[%d]: entity_id is required", r.Name, j)
			}
			if s.LightSensor != nil && s.LightSensor.EntityID == "" {
				return fmt.Errorf("auto_lights[%s].sensors[%d]: light_sensor.entity_id is required", r.Name, j)
			}
		}
	}

	seen = make(map[string]bool)
	for i, r := range rules.ColorControllers {
		if r.Name == "" {
			return fmt.Errorf("color_controllers[%d]: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("color_controllers[%d]: duplicate name %q", i, r.Name)
		}
		seen[r.Name] = true

		if err := validateLights(r.Lights); err != nil {
			return fmt.Errorf("color_controllers[%s]: %w", r.Name, err)
		}
		if r.UpdateRate <= 0 {
			return fmt.Errorf("color_controllers[%s]: update_rate must be positive", r.Name)
		}
		if r.Brightness == nil && r.ColorTemperature == nil {
			return fmt.Errorf("color_controllers[%s]: brightness or color_temperature is required", r.Name)
		}
		if r.Brightness != nil {
			if err := validateCycle(r.Brightness); err != nil {
				return fmt.Errorf("color_controllers[%s].brightness: %w", r.Name, err)
			}
		}
		if r.ColorTemperature != nil {
			if err := validateCycle(r.ColorTemperature); err != nil {
				return fmt.Errorf("color_controllers[%s].color_temperature: %w", r.Name, err)
			}
		}
	}

	return nil
}

func validateLights(lights []LightRef) error {
	if len(lights) == 0 {
		return fmt.Errorf("at least one light is required")
	}
	for i, l := range lights {
		if l.EntityID == "" {
			return fmt.Errorf("lights[%d]: entity_id is required", i)
		}
	}
	return nil
}

func validateCycle(c *CycleRule) error {
	for name, value := range map[string]string{
		"sunrise_earliest_end_time": c.SunriseEarliestEndTime,
		"sunrise_latest_end_time":   c.SunriseLatestEndTime,
		"sunset_earliest_end_time":  c.SunsetEarliestEndTime,
		"sunset_latest_end_time":    c.SunsetLatestEndTime,
	} {
		if _, err := ParseClock(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.SunriseFadeTime <= 0 || c.SunsetFadeTime <= 0 {
		return fmt.Errorf("fade times must be positive")
	}
	if c.SunriseFadeAngle == 0 || c.SunsetFadeAngle == 0 {
		return fmt.Errorf("fade angles must be non-zero")
	}
	return nil
}

// ParseClock parses an "HH:MM" time of day into seconds since midnight
func ParseClock(s string) (float64, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	return float64(t.Hour()*3600 + t.Minute()*60), nil
}
