package scenario

import (
	"fmt"
	"sort"
)

// ValidateScenario performs validation checks on a loaded scenario
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}

	if s.Setup.SettleSeconds < 0 {
		return fmt.Errorf("setup.settle_seconds cannot be negative")
	}
	for entity := range s.Setup.FriendlyNames {
		if _, ok := s.Setup.States[entity]; !ok {
			return fmt.Errorf("setup.friendly_names: %s has no initial state", entity)
		}
	}

	if err := validateEvents(s.Events); err != nil {
		return fmt.Errorf("events validation failed: %w", err)
	}

	if err := validateWaitPeriods(s.Wait); err != nil {
		return fmt.Errorf("wait periods validation failed: %w", err)
	}

	if err := validateExpectations(s.Expectations); err != nil {
		return fmt.Errorf("expectations validation failed: %w", err)
	}

	return nil
}

func validateEvents(events []StateEvent) error {
	if len(events) == 0 {
		return fmt.Errorf("at least one event is required")
	}

	for i, event := range events {
		if event.Time < 0 {
			return fmt.Errorf("event %d: time cannot be negative", i)
		}
		if event.Entity == "" {
			return fmt.Errorf("event %d: entity is required", i)
		}
		if event.State == "" {
			return fmt.Errorf("event %d: state is required", i)
		}
	}

	// Events are played in file order
	if !sort.SliceIsSorted(events, func(a, b int) bool { return events[a].Time < events[b].Time }) {
		return fmt.Errorf("events must be ordered by time")
	}

	return nil
}

func validateWaitPeriods(waits []WaitPeriod) error {
	for i, wait := range waits {
		if wait.Time < 0 {
			return fmt.Errorf("wait period %d: time cannot be negative", i)
		}
		if wait.Description == "" {
			return fmt.Errorf("wait period %d: description is required", i)
		}
	}
	return nil
}

func validateExpectations(expectations map[string][]Expectation) error {
	if len(expectations) == 0 {
		return fmt.Errorf("at least one expectation is required")
	}

	for layer, exps := range expectations {
		for i, exp := range exps {
			if exp.Time < 0 {
				return fmt.Errorf("layer %s, expectation %d: time cannot be negative", layer, i)
			}

			var err error
			switch layer {
			case LayerCommands:
				err = validateCommandExpectation(exp)
			case LayerRedis:
				err = validateRedisExpectation(exp)
			case LayerPostgres:
				err = validatePostgresExpectation(exp)
			default:
				err = fmt.Errorf("unknown layer (must be %s, %s or %s)", LayerCommands, LayerRedis, LayerPostgres)
			}
			if err != nil {
				return fmt.Errorf("layer %s, expectation %d: %w", layer, i, err)
			}
		}
	}

	return nil
}

func validateCommandExpectation(exp Expectation) error {
	if exp.Entity == "" {
		return fmt.Errorf("entity is required")
	}
	if len(exp.Payload) == 0 && exp.Count == nil {
		return fmt.Errorf("payload or count is required")
	}
	if exp.Count != nil && *exp.Count < 0 {
		return fmt.Errorf("count cannot be negative")
	}
	return nil
}

func validateRedisExpectation(exp Expectation) error {
	if exp.RedisKey == "" || exp.RedisField == "" {
		return fmt.Errorf("redis_key and redis_field are required")
	}
	if exp.Expected == "" {
		return fmt.Errorf("expected is required")
	}
	return nil
}

func validatePostgresExpectation(exp Expectation) error {
	if exp.PostgresQuery == "" {
		return fmt.Errorf("postgres_query is required")
	}
	if exp.PostgresExpected == nil {
		return fmt.Errorf("postgres_expected is required")
	}
	return nil
}
