// Package reporter renders scenario results for humans and CI
package reporter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/saaga0h/jeeves-autolight/e2e/internal/scenario"
)

const boxWidth = 58

// TimelineEvent is a single step of a scenario run
type TimelineEvent struct {
	Elapsed     float64 `json:"elapsed"`
	Layer       string  `json:"layer"`
	Description string  `json:"description"`
	Success     bool    `json:"success,omitempty"` // only meaningful for checks
	IsCheck     bool    `json:"is_check,omitempty"`
}

// GenerateTimeline renders the run as a plain text timeline followed by the
// expectation results per layer
func GenerateTimeline(result *scenario.TestResult, events []TimelineEvent) string {
	var sb strings.Builder

	writeBox(&sb,
		"Scenario: "+truncate(result.Scenario.Name, boxWidth-12),
		"Duration: "+formatDuration(result.EndTime.Sub(result.StartTime)),
	)
	sb.WriteString("\n")

	for _, event := range events {
		icon := "→"
		if event.IsCheck {
			icon = checkIcon(event.Success)
		}
		fmt.Fprintf(&sb, "[%7.2fs] %s %-9s: %s\n", event.Elapsed, icon, event.Layer, event.Description)
	}

	sb.WriteString("\n=== Expectations ===\n")

	byLayer := make(map[string][]scenario.ExpectationResult)
	for _, r := range result.Expectations {
		byLayer[r.Layer] = append(byLayer[r.Layer], r)
	}
	layers := make([]string, 0, len(byLayer))
	for layer := range byLayer {
		layers = append(layers, layer)
	}
	sort.Strings(layers)

	for _, layer := range layers {
		fmt.Fprintf(&sb, "Layer: %s\n", layer)
		for _, r := range byLayer[layer] {
			fmt.Fprintf(&sb, "  %s %s", checkIcon(r.Passed), r.Expectation.Target())
			if !r.Passed {
				fmt.Fprintf(&sb, ": %s", r.Reason)
			} else if conditions := formatConditions(r.Expectation.Payload); conditions != "" {
				fmt.Fprintf(&sb, ": %s", conditions)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	status := "✓ ALL TESTS PASSED"
	if result.FailedCount > 0 {
		status = fmt.Sprintf("✗ %d TEST(S) FAILED", result.FailedCount)
	}
	writeBox(&sb,
		"SUMMARY",
		fmt.Sprintf("Passed: %d", result.PassedCount),
		fmt.Sprintf("Failed: %d", result.FailedCount),
		"Status: "+status,
	)

	return sb.String()
}

func writeBox(sb *strings.Builder, lines ...string) {
	sb.WriteString("╔" + strings.Repeat("═", boxWidth) + "╗\n")
	for _, line := range lines {
		fmt.Fprintf(sb, "║  %-*s║\n", boxWidth-2, line)
	}
	sb.WriteString("╚" + strings.Repeat("═", boxWidth) + "╝\n")
}

func checkIcon(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func formatConditions(payload map[string]interface{}) string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conditions := make([]string, 0, len(keys))
	for _, key := range keys {
		conditions = append(conditions, fmt.Sprintf("%s=%v", key, payload[key]))
	}
	return strings.Join(conditions, ", ")
}

func formatDuration(d time.Duration) string {
	seconds := d.Seconds()
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	minutes := int(seconds / 60)
	return fmt.Sprintf("%dm %.1fs", minutes, seconds-float64(minutes*60))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
