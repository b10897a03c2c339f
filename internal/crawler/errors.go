package crawler

import (
	"fmt"

	"github.com/rohmanhakim/lore-crawler/pkg/failure"
)

type CrawlErrorCause string

const (
	ErrCauseBadSeed      CrawlErrorCause = "bad seed URL"
	ErrCauseBadConfig    CrawlErrorCause = "bad config"
	ErrCauseCancelled    CrawlErrorCause = "cancelled"
	ErrCauseStoreFailure CrawlErrorCause = "store failure"
)

type CrawlError struct {
	Message   string
	Retryable bool
	Cause     CrawlErrorCause
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawler error: %s, %s", e.Cause, e.Message)
}

func (e *CrawlError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *CrawlError) IsRetryable() bool {
	return e.Retryable
}

func (e *CrawlError) Kind() failure.Kind {
	switch e.Cause {
	case ErrCauseBadSeed, ErrCauseBadConfig:
		return failure.KindBadInput
	case ErrCauseCancelled:
		return failure.KindCancelled
	case ErrCauseStoreFailure:
		return failure.KindStoreUnavailable
	default:
		return failure.KindUnknown
	}
}

// Is allows errors.Is to match CrawlError types
func (e *CrawlError) Is(target error) bool {
	_, ok := target.(*CrawlError)
	return ok
}
