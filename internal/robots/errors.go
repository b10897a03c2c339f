package robots

import (
	"fmt"

	"github.com/rohmanhakim/lore-crawler/pkg/failure"
)

type RobotsErrorCause string

const (
	ErrCausePreFetchFailure     RobotsErrorCause = "pre-fetch failure"
	ErrCauseNetworkFailure      RobotsErrorCause = "network failure"
	ErrCauseHttpTooManyRequests RobotsErrorCause = "too many requests"
	ErrCauseHttpServerError     RobotsErrorCause = "server error"
	ErrCauseParseFailure        RobotsErrorCause = "parse failure"
)

type RobotsError struct {
	Message   string
	Retryable bool
	Cause     RobotsErrorCause
}

func (e *RobotsError) Error() string {
	return fmt.Sprintf("robots error: %s, %s", e.Cause, e.Message)
}

func (e *RobotsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *RobotsError) IsRetryable() bool {
	return e.Retryable
}

func (e *RobotsError) Kind() failure.Kind {
	switch e.Cause {
	case ErrCauseNetworkFailure, ErrCauseHttpTooManyRequests, ErrCauseHttpServerError:
		return failure.KindTransientNetwork
	default:
		return failure.KindUnknown
	}
}

// Is allows errors.Is to match RobotsError types
func (e *RobotsError) Is(target error) bool {
	_, ok := target.(*RobotsError)
	return ok
}
