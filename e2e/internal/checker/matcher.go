package checker

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// MatchesExpectation reports whether actual satisfies expected. String
// expectations may be a regular expression wrapped in tildes (~^on$~) or a
// numeric comparison (>3, <=255). Maps match when every expected key
// matches; extra actual keys are ignored. Returns the mismatch reason.
func MatchesExpectation(actual, expected interface{}) (bool, string) {
	if expected == nil || actual == nil {
		if expected == nil && actual == nil {
			return true, ""
		}
		return false, fmt.Sprintf("expected %v, got %v", expected, actual)
	}

	if s, ok := expected.(string); ok {
		switch {
		case len(s) > 1 && strings.HasPrefix(s, "~") && strings.HasSuffix(s, "~"):
			return matchRegex(actual, strings.Trim(s, "~"))
		case strings.HasPrefix(s, ">") || strings.HasPrefix(s, "<"):
			return matchComparison(actual, s)
		}
	}

	if ef, ok := toFloat64(expected); ok {
		af, ok := toFloat64(actual)
		if !ok {
			return false, fmt.Sprintf("expected number %v, got %T", expected, actual)
		}
		if af != ef {
			return false, fmt.Sprintf("expected %v, got %v", expected, actual)
		}
		return true, ""
	}

	switch exp := expected.(type) {
	case map[string]interface{}:
		return matchMap(actual, exp)
	case []interface{}:
		return matchSlice(actual, exp)
	}

	if reflect.TypeOf(actual) != reflect.TypeOf(expected) {
		return false, fmt.Sprintf("type mismatch: expected %T, got %T", expected, actual)
	}
	if !reflect.DeepEqual(actual, expected) {
		return false, fmt.Sprintf("expected %q, got %q", fmt.Sprint(expected), fmt.Sprint(actual))
	}
	return true, ""
}

func matchRegex(actual interface{}, pattern string) (bool, string) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern %q: %v", pattern, err)
	}

	s := fmt.Sprint(actual)
	if re.MatchString(s) {
		return true, ""
	}
	return false, fmt.Sprintf("value %q does not match ~%s~", s, pattern)
}

var comparisons = []struct {
	op   string
	test func(a, b float64) bool
}{
	// Two character operators first
	{">=", func(a, b float64) bool { return a >= b }},
	{"<=", func(a, b float64) bool { return a <= b }},
	{">", func(a, b float64) bool { return a > b }},
	{"<", func(a, b float64) bool { return a < b }},
}

func matchComparison(actual interface{}, comparison string) (bool, string) {
	af, ok := toFloat64(actual)
	if !ok {
		return false, fmt.Sprintf("cannot compare non-numeric value %v", actual)
	}

	for _, c := range comparisons {
		rest, found := strings.CutPrefix(comparison, c.op)
		if !found {
			continue
		}
		bound, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
		if err != nil {
			return false, fmt.Sprintf("invalid comparison value %q", rest)
		}
		if c.test(af, bound) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %s%v, got %v", c.op, bound, af)
	}
	return false, fmt.Sprintf("invalid comparison %q", comparison)
}

func matchMap(actual interface{}, expected map[string]interface{}) (bool, string) {
	am, ok := actual.(map[string]interface{})
	if !ok {
		return false, fmt.Sprintf("expected object, got %T", actual)
	}

	for key, ev := range expected {
		av, exists := am[key]
		if !exists {
			return false, fmt.Sprintf("missing key %q", key)
		}
		if ok, reason := MatchesExpectation(av, ev); !ok {
			return false, fmt.Sprintf("key %q: %s", key, reason)
		}
	}
	return true, ""
}

func matchSlice(actual interface{}, expected []interface{}) (bool, string) {
	as, ok := actual.([]interface{})
	if !ok {
		return false, fmt.Sprintf("expected array, got %T", actual)
	}
	if len(as) != len(expected) {
		return false, fmt.Sprintf("expected %d elements, got %d", len(expected), len(as))
	}

	for i := range expected {
		if ok, reason := MatchesExpectation(as[i], expected[i]); !ok {
			return false, fmt.Sprintf("element %d: %s", i, reason)
		}
	}
	return true, ""
}

// toFloat64 converts numbers, and the numeric strings Redis and database
// drivers return, to float64
func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	return 0, false
}
