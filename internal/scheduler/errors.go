package scheduler

import (
	"fmt"

	"github.com/rohmanhakim/lore-crawler/pkg/failure"
)

type SchedulerErrorCause string

const (
	ErrCauseBadSpec       SchedulerErrorCause = "bad job spec"
	ErrCauseDuplicateJob  SchedulerErrorCause = "duplicate job id"
	ErrCauseUnknownJob    SchedulerErrorCause = "unknown job id"
	ErrCauseTerminalState SchedulerErrorCause = "job already terminal"
	ErrCauseStopped       SchedulerErrorCause = "scheduler stopped"
)

type SchedulerError struct {
	Message string
	Cause   SchedulerErrorCause
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("scheduler error: %s, %s", e.Cause, e.Message)
}

func (e *SchedulerError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *SchedulerError) Kind() failure.Kind {
	switch e.Cause {
	case ErrCauseBadSpec, ErrCauseDuplicateJob, ErrCauseUnknownJob, ErrCauseTerminalState:
		return failure.KindBadInput
	default:
		return failure.KindUnknown
	}
}

// Is allows errors.Is to match SchedulerError types
func (e *SchedulerError) Is(target error) bool {
	_, ok := target.(*SchedulerError)
	return ok
}
