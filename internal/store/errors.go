package store

import (
	"fmt"

	"github.com/rohmanhakim/lore-crawler/pkg/failure"
)

type StoreErrorCause string

const (
	ErrCauseUnavailable  StoreErrorCause = "store unavailable"
	ErrCauseCorrupted    StoreErrorCause = "corruption detected"
	ErrCauseMigration    StoreErrorCause = "migration failed"
	ErrCauseConstraint   StoreErrorCause = "constraint violated"
	ErrCauseInvalidInput StoreErrorCause = "invalid input"
	ErrCauseNotFound     StoreErrorCause = "not found"
	ErrCauseCancelled    StoreErrorCause = "cancelled"
)

type StoreError struct {
	Message   string
	Retryable bool
	Cause     StoreErrorCause
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s, %s", e.Cause, e.Message)
}

func (e *StoreError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *StoreError) IsRetryable() bool {
	return e.Retryable
}

func (e *StoreError) Kind() failure.Kind {
	switch e.Cause {
	case ErrCauseInvalidInput:
		return failure.KindBadInput
	case ErrCauseCancelled:
		return failure.KindCancelled
	default:
		return failure.KindStoreUnavailable
	}
}

// Is allows errors.Is to match StoreError types
func (e *StoreError) Is(target error) bool {
	_, ok := target.(*StoreError)
	return ok
}
