package executor

import (
	"context"
	"time"
)

// WaitUntil blocks until offset seconds after start or until ctx is done
func WaitUntil(ctx context.Context, start time.Time, offset int) error {
	wait := time.Until(start.Add(time.Duration(offset) * time.Second))
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetElapsed returns elapsed seconds since start
func GetElapsed(start time.Time) float64 {
	return time.Since(start).Seconds()
}
