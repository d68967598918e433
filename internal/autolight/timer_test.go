package autolight

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebounceTimer_ArmAndFire(t *testing.T) {
	host := newFakePlatform()
	var timer debounceTimer
	fired := 0

	timer.arm(host, time.Minute, func(ctx context.Context) { fired++ })
	assert.Equal(t, TimerPendingOff, timer.state)
	require.Len(t, host.pending(), 1)
	assert.Equal(t, time.Minute, host.pending()[0].delay)

	host.fire(host.pending()[0])
	assert.Equal(t, 1, fired)
	assert.Equal(t, TimerIdle, timer.state)
}

func TestDebounceTimer_RearmCancelsPrevious(t *testing.T) {
	host := newFakePlatform()
	var timer debounceTimer
	fired := 0

	timer.arm(host, time.Minute, func(ctx context.Context) { fired++ })
	first := host.timers[0]
	timer.arm(host, time.Minute, func(ctx context.Context) { fired += 10 })

	assert.True(t, first.cancelled)
	require.Len(t, host.pending(), 1)

	// A stale firing of the first timer does nothing
	host.fire(first)
	assert.Equal(t, 0, fired)
	assert.Equal(t, TimerPendingOff, timer.state)

	host.fire(host.pending()[0])
	assert.Equal(t, 10, fired)
}

func TestDebounceTimer_CancelIsIdempotent(t *testing.T) {
	host := newFakePlatform()
	var timer debounceTimer

	assert.False(t, timer.cancel(), "cancel on idle timer")

	timer.arm(host, time.Second, func(ctx context.Context) {
		t.Fatal("cancelled timer fired")
	})
	assert.True(t, timer.cancel())
	assert.False(t, timer.cancel())
	assert.Equal(t, TimerIdle, timer.state)
	assert.Empty(t, host.pending())

	// The platform losing the cancel race must not run the action
	host.fire(host.timers[0])
}

func TestTimerState_String(t *testing.T) {
	assert.Equal(t, "idle", TimerIdle.String())
	assert.Equal(t, "pending_off", TimerPendingOff.String())
	assert.Equal(t, "unknown", TimerState(7).String())
}
