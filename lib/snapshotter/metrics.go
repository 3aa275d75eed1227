package snapshotter

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

type cycleMetrics struct {
	class    string
	selected int
	resolved int
	failed   int
	errored  int
}

func (m *cycleMetrics) log(log *zap.Logger, startedAt time.Time, now time.Time) {
	if m.selected == 0 {
		return
	}

	args := []any{"class", m.class}
	if m.resolved != 0 {
		args = append(args, "resolved", m.resolved)
	}
	if m.failed != 0 {
		args = append(args, "failed", m.failed)
	}
	if m.errored != 0 {
		args = append(args, "errored", m.errored)
	}
	args = append(args, "elapsed_msecs", int(now.Sub(startedAt).Milliseconds()))

	log.Sugar().Infow(fmt.Sprintf("Processed %d items", m.selected), args...)
}
