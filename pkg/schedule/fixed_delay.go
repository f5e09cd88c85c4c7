// Package schedule runs periodic work.
package schedule

import (
	"context"
	"time"

	"github.com/tinyland-inc/aobridge/pkg/logger"
)

// Task is one unit of periodic work.
type Task func(ctx context.Context) error

// FixedDelay runs task immediately and then again delay after each run
// completes, so runs never overlap. Task errors are logged under name and
// do not stop the loop. It returns when ctx is cancelled.
func FixedDelay(ctx context.Context, name string, delay time.Duration, task Task) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := task(ctx); err != nil && ctx.Err() == nil {
			logger.ErrorCF("schedule", "Scheduled task failed", map[string]any{
				"task":  name,
				"error": err.Error(),
			})
		}
		timer.Reset(delay)
	}
}
