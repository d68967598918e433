package scenario

import "time"

// Expectation layers
const (
	LayerCommands = "commands"
	LayerRedis    = "redis"
	LayerPostgres = "postgres"
)

// Scenario is a scripted sequence of entity state changes played against a
// running autolight agent, together with the outcomes it should produce
type Scenario struct {
	Name         string                   `yaml:"name" json:"name"`
	Description  string                   `yaml:"description" json:"description"`
	Setup        SetupConfig              `yaml:"setup" json:"setup"`
	Events       []StateEvent             `yaml:"events" json:"events"`
	Wait         []WaitPeriod             `yaml:"wait" json:"wait,omitempty"`
	Expectations map[string][]Expectation `yaml:"expectations" json:"expectations"`
}

// SetupConfig lists the entity states published (retained) before the
// scenario clock starts
type SetupConfig struct {
	States        map[string]string `yaml:"states" json:"states,omitempty"`
	FriendlyNames map[string]string `yaml:"friendly_names" json:"friendly_names,omitempty"`
	// Seconds to wait for the agent to pick up the seeded states
	SettleSeconds int `yaml:"settle_seconds" json:"settle_seconds,omitempty"`
}

// StateEvent is one state change of an entity
type StateEvent struct {
	Time        int    `yaml:"time" json:"time"` // seconds from start
	Entity      string `yaml:"entity" json:"entity"`
	State       string `yaml:"state" json:"state"`
	Description string `yaml:"description" json:"description"`
}

// WaitPeriod is a pause in the scenario
type WaitPeriod struct {
	Time        int    `yaml:"time" json:"time"`
	Description string `yaml:"description" json:"description"`
}

// Expectation is an outcome checked at Time seconds from start.
//
// In the commands layer Entity names the light and Payload is matched
// against the last command it received; Count, when set, is the number of
// commands expected. The redis layer compares one hash field and the
// postgres layer the first column of a query.
type Expectation struct {
	Time        int    `yaml:"time" json:"time"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Entity  string                 `yaml:"entity,omitempty" json:"entity,omitempty"`
	Payload map[string]interface{} `yaml:"payload,omitempty" json:"payload,omitempty"`
	Count   *int                   `yaml:"count,omitempty" json:"count,omitempty"`

	RedisKey   string `yaml:"redis_key,omitempty" json:"redis_key,omitempty"`
	RedisField string `yaml:"redis_field,omitempty" json:"redis_field,omitempty"`
	Expected   string `yaml:"expected,omitempty" json:"expected,omitempty"`

	PostgresQuery    string      `yaml:"postgres_query,omitempty" json:"postgres_query,omitempty"`
	PostgresExpected interface{} `yaml:"postgres_expected,omitempty" json:"postgres_expected,omitempty"`
}

// Target names what an expectation looks at, for reports
func (e Expectation) Target() string {
	switch {
	case e.Entity != "":
		return e.Entity
	case e.RedisKey != "":
		return e.RedisKey + "." + e.RedisField
	default:
		return e.PostgresQuery
	}
}

// TestResult is the outcome of running a scenario
type TestResult struct {
	Scenario     *Scenario           `json:"scenario"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	Passed       bool                `json:"passed"`
	PassedCount  int                 `json:"passed_count"`
	FailedCount  int                 `json:"failed_count"`
	Expectations []ExpectationResult `json:"expectations"`
}

// ExpectationResult is the result of checking a single expectation
type ExpectationResult struct {
	Layer       string      `json:"layer"`
	Expectation Expectation `json:"expectation"`
	Passed      bool        `json:"passed"`
	Reason      string      `json:"reason,omitempty"`
	Actual      interface{} `json:"actual,omitempty"`
}
