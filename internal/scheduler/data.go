package scheduler

import (
	"time"

	"github.com/rohmanhakim/lore-crawler/internal/crawler"
	"github.com/rohmanhakim/lore-crawler/internal/store"
)

// JobSpec is what callers submit. An empty JobID gets a generated one.
type JobSpec struct {
	JobID    string
	SeedURL  string
	Priority store.JobPriority
	Config   crawler.CrawlConfig
}

// JobStatus is the externally visible snapshot of one job.
type JobStatus struct {
	JobID     string
	SeedURL   string
	State     store.JobState
	Priority  store.JobPriority
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
	Elapsed   time.Duration
	Attempts  int
	Error     string
	Metrics   store.JobMetrics
}

// job is the scheduler-internal state of one submission.
type job struct {
	spec        JobSpec
	state       store.JobState
	attempts    int
	createdAt   time.Time
	scheduledAt time.Time
	startedAt   time.Time
	endedAt     time.Time
	errText     string
	metrics     store.JobMetrics
	// cancelRequested distinguishes a user cancel from a timeout when
	// the run context dies.
	cancelRequested bool
}

func (j *job) status(now time.Time) JobStatus {
	elapsed := time.Duration(0)
	if !j.startedAt.IsZero() {
		end := j.endedAt
		if end.IsZero() {
			end = now
		}
		elapsed = end.Sub(j.startedAt)
	}
	return JobStatus{
		JobID:     j.spec.JobID,
		SeedURL:   j.spec.SeedURL,
		State:     j.state,
		Priority:  j.spec.Priority,
		CreatedAt: j.createdAt,
		StartedAt: j.startedAt,
		EndedAt:   j.endedAt,
		Elapsed:   elapsed,
		Attempts:  j.attempts,
		Error:     j.errText,
		Metrics:   j.metrics,
	}
}

// priorityIndex maps a priority onto its queue slot.
func priorityIndex(p store.JobPriority) int {
	switch p {
	case store.PriorityCritical:
		return 0
	case store.PriorityHigh:
		return 1
	case store.PriorityNormal:
		return 2
	default:
		return 3
	}
}
