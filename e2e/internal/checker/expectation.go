// Package checker verifies scenario expectations against captured commands,
// the Redis state mirror and the Postgres switch log
package checker

import (
	"fmt"

	"github.com/saaga0h/jeeves-autolight/e2e/internal/observer"
	"github.com/saaga0h/jeeves-autolight/e2e/internal/scenario"
	"github.com/saaga0h/jeeves-autolight/pkg/mqtt"
)

// CheckCommandExpectation validates the commands a light received. The
// payload is matched against the most recent command.
func CheckCommandExpectation(exp scenario.Expectation, messages []observer.CapturedMessage) (bool, string, interface{}) {
	topic := mqtt.CommandTopic(exp.Entity)

	var commands []observer.CapturedMessage
	for _, msg := range messages {
		if msg.Topic == topic {
			commands = append(commands, msg)
		}
	}

	if exp.Count != nil && len(commands) != *exp.Count {
		return false, fmt.Sprintf("expected %d commands for %s, got %d", *exp.Count, exp.Entity, len(commands)), len(commands)
	}
	if len(exp.Payload) == 0 {
		return true, "", len(commands)
	}
	if len(commands) == 0 {
		return false, fmt.Sprintf("no commands sent to %s", exp.Entity), nil
	}

	latest := commands[len(commands)-1]
	payload, ok := latest.Payload.(map[string]interface{})
	if !ok {
		return false, fmt.Sprintf("command is not a JSON object, got %T", latest.Payload), latest.Payload
	}

	if matches, reason := MatchesExpectation(payload, exp.Payload); !matches {
		return false, reason, latest.Payload
	}
	return true, "", latest.Payload
}
