package cmd

import (
	"context"
	"time"

	"github.com/rohmanhakim/lore-crawler/internal/store"
	"github.com/rohmanhakim/lore-crawler/internal/tools"
)

// waitForJob blocks until the job reaches a terminal state or the
// context is cancelled. Queued retries (timed-out -> queued) keep the
// wait alive.
func waitForJob(ctx context.Context, core *tools.Core, jobID string) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			statuses, err := core.Scheduler.Status(jobID)
			if err != nil || len(statuses) == 0 {
				return
			}
			if statuses[0].State.Terminal() {
				return
			}
		}
	}
}

func storeState(s string) store.JobState {
	return store.JobState(s)
}
