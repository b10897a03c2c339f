package fetcher

import (
	"fmt"

	"github.com/rohmanhakim/lore-crawler/pkg/failure"
)

type FetchErrorCause string

const (
	ErrCauseTimeout               FetchErrorCause = "timeout"
	ErrCauseNetworkFailure        FetchErrorCause = "network issues"
	ErrCauseReadResponseBodyError FetchErrorCause = "failed to read response body"
	ErrCauseContentTypeInvalid    FetchErrorCause = "unsupported content type"
	ErrCauseRedirectLimitExceeded FetchErrorCause = "reached redirect limit"
	ErrCauseRedirectLoop          FetchErrorCause = "redirect loop"
	ErrCauseRequestForbidden      FetchErrorCause = "forbidden"
	ErrCauseRequestTooMany        FetchErrorCause = "too many requests"
	ErrCauseRequest4xx            FetchErrorCause = "4xx"
	ErrCauseRequest5xx            FetchErrorCause = "5xx"
	ErrCauseBodyTooLarge          FetchErrorCause = "body too large"
	ErrCauseRobotsDisallowed      FetchErrorCause = "robots disallowed"
	ErrCauseCancelled             FetchErrorCause = "cancelled"
)

type FetchError struct {
	Message   string
	Retryable bool
	Cause     FetchErrorCause
	Code      int // HTTP status when the cause is an HTTP error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetcher error: %s", e.Cause)
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable returns whether this error is retryable
func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}

// Kind maps fetcher-local error semantics to the canonical failure table.
// The mapping is observational; control flow reads Retryable instead.
func (e *FetchError) Kind() failure.Kind {
	switch e.Cause {
	case ErrCauseTimeout:
		return failure.KindTimedOut
	case ErrCauseNetworkFailure, ErrCauseReadResponseBodyError, ErrCauseRequest5xx, ErrCauseRequestTooMany:
		return failure.KindTransientNetwork
	case ErrCauseRequestForbidden, ErrCauseRequest4xx, ErrCauseRedirectLimitExceeded, ErrCauseRedirectLoop:
		return failure.KindPermanentHTTP
	case ErrCauseRobotsDisallowed, ErrCauseBodyTooLarge, ErrCauseContentTypeInvalid:
		return failure.KindPolicyBlocked
	case ErrCauseCancelled:
		return failure.KindCancelled
	default:
		return failure.KindUnknown
	}
}

// Is allows errors.Is to match FetchError types
func (e *FetchError) Is(target error) bool {
	_, ok := target.(*FetchError)
	return ok
}
