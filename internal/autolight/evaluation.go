package autolight

import "log/slog"

// Evaluation is the outcome of an ambient-light darkness check. A synthetic
// evaluation (no sensor configured, or lights already on) carries no sensor
// name, value or threshold.
type Evaluation struct {
	DarkEnough bool
	Sensor     *string
	Value      *int
	Threshold  *int
}

// Evaluate compares a measured light level against a threshold. The
// threshold itself counts as dark enough.
func Evaluate(name string, value, threshold int) Evaluation {
	return Evaluation{
		DarkEnough: value <= threshold,
		Sensor:     &name,
		Value:      &value,
		Threshold:  &threshold,
	}
}

// FakeResult returns a synthetic evaluation used when no real sensor read applies
func FakeResult(darkEnough bool) Evaluation {
	return Evaluation{DarkEnough: darkEnough}
}

// Synthetic reports whether the evaluation bypassed a real sensor read
func (e Evaluation) Synthetic() bool {
	return e.Sensor == nil
}

// LogValue implements slog.LogValuer
func (e Evaluation) LogValue() slog.Value {
	if e.Synthetic() {
		return slog.GroupValue(
			slog.Bool("dark_enough", e.DarkEnough),
			slog.Bool("synthetic", true),
		)
	}
	return slog.GroupValue(
		slog.Bool("dark_enough", e.DarkEnough),
		slog.String("sensor", *e.Sensor),
		slog.Int("value", *e.Value),
		slog.Int("threshold", *e.Threshold),
	)
}
