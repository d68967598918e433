// Package executor plays scenarios against a running autolight agent
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/saaga0h/jeeves-autolight/e2e/internal/checker"
	"github.com/saaga0h/jeeves-autolight/e2e/internal/observer"
	"github.com/saaga0h/jeeves-autolight/e2e/internal/reporter"
	"github.com/saaga0h/jeeves-autolight/e2e/internal/scenario"
	"github.com/saaga0h/jeeves-autolight/pkg/mqtt"
	"github.com/saaga0h/jeeves-autolight/pkg/postgres"
	"github.com/saaga0h/jeeves-autolight/pkg/redis"
)

// Runner orchestrates scenario execution on connected clients
type Runner struct {
	mqtt     mqtt.Client
	redis    redis.Client
	postgres postgres.Client
	logger   *slog.Logger

	player   *Player
	observer *observer.Observer
}

// NewRunner creates a runner. pgClient may be nil, in which case postgres
// expectations fail.
func NewRunner(mqttClient mqtt.Client, redisClient redis.Client, pgClient postgres.Client, logger *slog.Logger) *Runner {
	return &Runner{
		mqtt:     mqttClient,
		redis:    redisClient,
		postgres: pgClient,
		logger:   logger,
		player:   NewPlayer(mqttClient, logger),
		observer: observer.NewObserver(mqttClient, logger, mqtt.TopicCommandBase+"/#"),
	}
}

type stepKind int

// Steps at the same second run in this order
const (
	stepEvent stepKind = iota
	stepWait
	stepCheck
)

type step struct {
	time  int
	kind  stepKind
	event scenario.StateEvent
	wait  scenario.WaitPeriod
	layer string
	exp   scenario.Expectation
}

// schedule merges events, waits and expectations into one time ordered plan
func schedule(s *scenario.Scenario) []step {
	var steps []step
	for _, e := range s.Events {
		steps = append(steps, step{time: e.Time, kind: stepEvent, event: e})
	}
	for _, w := range s.Wait {
		steps = append(steps, step{time: w.Time, kind: stepWait, wait: w})
	}

	layers := make([]string, 0, len(s.Expectations))
	for layer := range s.Expectations {
		layers = append(layers, layer)
	}
	sort.Strings(layers)
	for _, layer := range layers {
		for _, exp := range s.Expectations[layer] {
			steps = append(steps, step{time: exp.Time, kind: stepCheck, layer: layer, exp: exp})
		}
	}

	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].time != steps[j].time {
			return steps[i].time < steps[j].time
		}
		return steps[i].kind < steps[j].kind
	})
	return steps
}

// Run seeds the initial states, plays the scenario and checks every
// expectation at its time
func (r *Runner) Run(ctx context.Context, s *scenario.Scenario) (*scenario.TestResult, []reporter.TimelineEvent, error) {
	r.logger.Info("Starting scenario", "name", s.Name, "description", s.Description)

	if err := r.player.Seed(s.Setup); err != nil {
		return nil, nil, fmt.Errorf("failed to seed initial states: %w", err)
	}
	if s.Setup.SettleSeconds > 0 {
		r.logger.Info("Waiting for the agent to settle", "seconds", s.Setup.SettleSeconds)
		if err := WaitUntil(ctx, time.Now(), s.Setup.SettleSeconds); err != nil {
			return nil, nil, err
		}
	}

	if err := r.observer.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start observer: %w", err)
	}
	defer r.observer.Stop()

	result := &scenario.TestResult{Scenario: s, StartTime: time.Now()}
	var timeline []reporter.TimelineEvent

	for _, st := range schedule(s) {
		if err := WaitUntil(ctx, result.StartTime, st.time); err != nil {
			return nil, nil, fmt.Errorf("scenario interrupted: %w", err)
		}
		elapsed := GetElapsed(result.StartTime)

		switch st.kind {
		case stepEvent:
			desc := fmt.Sprintf("%s = %s", st.event.Entity, st.event.State)
			if st.event.Description != "" {
				desc += " (" + st.event.Description + ")"
			}
			r.logger.Info("Publishing state", "elapsed", fmt.Sprintf("%.2fs", elapsed), "entity", st.event.Entity, "state", st.event.State)
			if err := r.player.PublishState(st.event.Entity, st.event.State); err != nil {
				return nil, nil, err
			}
			timeline = append(timeline, reporter.TimelineEvent{Elapsed: elapsed, Layer: "state", Description: desc})

		case stepWait:
			timeline = append(timeline, reporter.TimelineEvent{Elapsed: elapsed, Layer: "wait", Description: st.wait.Description})

		case stepCheck:
			res := r.check(ctx, st.layer, st.exp)
			result.Expectations = append(result.Expectations, res)
			if res.Passed {
				result.PassedCount++
			} else {
				result.FailedCount++
				r.logger.Warn("Expectation failed", "layer", st.layer, "target", st.exp.Target(), "reason", res.Reason)
			}

			desc := st.exp.Target()
			if !res.Passed {
				desc += ": " + res.Reason
			}
			timeline = append(timeline, reporter.TimelineEvent{
				Elapsed:     elapsed,
				Layer:       st.layer,
				Description: desc,
				Success:     res.Passed,
				IsCheck:     true,
			})
		}
	}

	result.EndTime = time.Now()
	result.Passed = result.FailedCount == 0

	r.logger.Info("Scenario finished",
		"name", s.Name,
		"passed", result.PassedCount,
		"failed", result.FailedCount,
		"captured", r.observer.MessageCount())

	return result, timeline, nil
}

func (r *Runner) check(ctx context.Context, layer string, exp scenario.Expectation) scenario.ExpectationResult {
	var ok bool
	var reason string
	var actual interface{}

	switch layer {
	case scenario.LayerCommands:
		ok, reason, actual = checker.CheckCommandExpectation(exp, r.observer.Messages())
	case scenario.LayerRedis:
		ok, reason, actual = checker.CheckRedisExpectation(ctx, r.redis, exp)
	case scenario.LayerPostgres:
		ok, reason, actual = checker.CheckPostgresExpectation(ctx, r.postgres, exp)
	default:
		reason = fmt.Sprintf("unknown layer %q", layer)
	}

	return scenario.ExpectationResult{
		Layer:       layer,
		Expectation: exp,
		Passed:      ok,
		Reason:      reason,
		Actual:      actual,
	}
}

// SaveCapture saves every captured command to a JSON file
func (r *Runner) SaveCapture(filename string) error {
	return r.observer.SaveCapture(filename)
}
