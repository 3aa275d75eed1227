package snapshotter

import (
	"context"
	"time"
)

// alarmClock is the loops' only source of time, so tests can run cycles without waiting.
type alarmClock interface {
	Now() time.Time
	// Sleep returns false when ctx ends first.
	Sleep(ctx context.Context, d time.Duration) bool
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
