package checker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/saaga0h/jeeves-autolight/e2e/internal/scenario"
	"github.com/saaga0h/jeeves-autolight/pkg/postgres"
)

// approximateTolerance is the relative slack of "~N" expectations
const approximateTolerance = 0.2

// CheckPostgresExpectation runs the query and compares the first column of
// the first row. "~N" accepts values within 20% of N; every other form goes
// through MatchesExpectation.
func CheckPostgresExpectation(ctx context.Context, client postgres.Client, exp scenario.Expectation) (bool, string, interface{}) {
	if client == nil {
		return false, "postgres not configured", nil
	}

	rows, err := client.Query(ctx, exp.PostgresQuery)
	if err != nil {
		return false, fmt.Sprintf("query failed: %v", err), nil
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, fmt.Sprintf("query failed: %v", err), nil
		}
		return false, "query returned no rows", nil
	}

	var result interface{}
	if err := rows.Scan(&result); err != nil {
		return false, fmt.Sprintf("scan failed: %v", err), nil
	}
	if b, ok := result.([]byte); ok {
		result = string(b)
	}

	matches, reason := compareResult(result, exp.PostgresExpected)
	return matches, reason, result
}

func compareResult(actual, expected interface{}) (bool, string) {
	if s, ok := expected.(string); ok && strings.HasPrefix(s, "~") && !strings.HasSuffix(s, "~") {
		return compareApproximate(actual, s)
	}
	return MatchesExpectation(actual, expected)
}

func compareApproximate(actual interface{}, expected string) (bool, string) {
	target, err := strconv.ParseFloat(strings.TrimPrefix(expected, "~"), 64)
	if err != nil {
		return false, fmt.Sprintf("invalid approximate value %q", expected)
	}

	value, ok := toFloat64(actual)
	if !ok {
		return false, fmt.Sprintf("cannot convert %v to a number", actual)
	}

	tolerance := target * approximateTolerance
	if tolerance < 0 {
		tolerance = -tolerance
	}
	if value >= target-tolerance && value <= target+tolerance {
		return true, ""
	}
	return false, fmt.Sprintf("value %.2f not within ±20%% of %.0f", value, target)
}
