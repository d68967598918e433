package autolight

import (
	"context"
	"time"
)

// TimerState is the debounce timer's state
type TimerState int

const (
	// TimerIdle means no turn-off is pending
	TimerIdle TimerState = iota
	// TimerPendingOff means a turn-off is scheduled
	TimerPendingOff
)

func (s TimerState) String() string {
	switch s {
	case TimerIdle:
		return "idle"
	case TimerPendingOff:
		return "pending_off"
	default:
		return "unknown"
	}
}

type scheduler interface {
	ScheduleAfter(delay time.Duration, action func(ctx context.Context)) (cancel func())
}

// debounceTimer owns the single turn-off slot. At most one scheduled action
// exists; arming always cancels the previous one first.
type debounceTimer struct {
	state      TimerState
	cancelFn   func()
	generation uint64
}

func (t *debounceTimer) arm(s scheduler, delay time.Duration, action func(ctx context.Context)) {
	t.cancel()

	t.generation++
	gen := t.generation
	t.state = TimerPendingOff
	t.cancelFn = s.ScheduleAfter(delay, func(ctx context.Context) {
		// A firing that lost the race against cancel or re-arm is stale
		if t.state != TimerPendingOff || t.generation != gen {
			return
		}
		t.state = TimerIdle
		t.cancelFn = nil
		action(ctx)
	})
}

// cancel reports whether a pending turn-off was cancelled
func (t *debounceTimer) cancel() bool {
	if t.state != TimerPendingOff {
		return false
	}
	if t.cancelFn != nil {
		t.cancelFn()
	}
	t.cancelFn = nil
	t.state = TimerIdle
	return true
}
