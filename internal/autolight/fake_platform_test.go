package autolight

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

type fakeTimer struct {
	delay     time.Duration
	action    func(ctx context.Context)
	cancelled bool
	fired     bool
}

// fakePlatform is an in-memory Platform with a manually driven scheduler
type fakePlatform struct {
	states   map[string]string
	queued   map[string][]string
	reads    map[string]int
	names    map[string]string
	handlers map[string][]func(ctx context.Context, previous, current string)

	subscribeErr error
	switchErr    error
	commands     []string
	timers       []*fakeTimer
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		states:   make(map[string]string),
		queued:   make(map[string][]string),
		reads:    make(map[string]int),
		names:    make(map[string]string),
		handlers: make(map[string][]func(ctx context.Context, previous, current string)),
	}
}

func (f *fakePlatform) SubscribeStateChange(entityID string, handler func(ctx context.Context, previous, current string)) error {
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers[entityID] = append(f.handlers[entityID], handler)
	return nil
}

func (f *fakePlatform) GetState(ctx context.Context, entityID string) (string, error) {
	f.reads[entityID]++
	if q := f.queued[entityID]; len(q) > 0 {
		f.queued[entityID] = q[1:]
		return q[0], nil
	}
	state, ok := f.states[entityID]
	if !ok {
		return "", fmt.Errorf("entity %s not found", entityID)
	}
	return state, nil
}

func (f *fakePlatform) SwitchOn(ctx context.Context, entityID string) error {
	if f.switchErr != nil {
		return f.switchErr
	}
	f.commands = append(f.commands, "on:"+entityID)
	f.states[entityID] = StateOn
	return nil
}

func (f *fakePlatform) SwitchOff(ctx context.Context, entityID string) error {
	if f.switchErr != nil {
		return f.switchErr
	}
	f.commands = append(f.commands, "off:"+entityID)
	f.states[entityID] = StateOff
	return nil
}

func (f *fakePlatform) ScheduleAfter(delay time.Duration, action func(ctx context.Context)) func() {
	t := &fakeTimer{delay: delay, action: action}
	f.timers = append(f.timers, t)
	return func() { t.cancelled = true }
}

func (f *fakePlatform) DisplayName(ctx context.Context, entityID string) string {
	if name, ok := f.names[entityID]; ok {
		return name
	}
	return entityID
}

// emit sets the entity state and delivers the change to subscribers
func (f *fakePlatform) emit(entityID, previous, current string) {
	f.states[entityID] = current
	for _, h := range f.handlers[entityID] {
		h(context.Background(), previous, current)
	}
}

func (f *fakePlatform) pending() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range f.timers {
		if !t.cancelled && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs a timer's action the way the platform would, even if cancelled
func (f *fakePlatform) fire(t *fakeTimer) {
	t.fired = true
	t.action(context.Background())
}

func (f *fakePlatform) resetCommands() {
	f.commands = nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// captureHandler keeps every record for assertions on log output
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}
