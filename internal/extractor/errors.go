package extractor

import (
	"fmt"

	"github.com/rohmanhakim/lore-crawler/pkg/failure"
)

type ExtractionErrorCause string

const (
	ErrCauseNotHTML     ExtractionErrorCause = "not valid HTML"
	ErrCauseNoContent   ExtractionErrorCause = "no meaningful content"
	ErrCauseUnsupported ExtractionErrorCause = "unsupported document type"
)

type ExtractionError struct {
	Message   string
	Retryable bool
	Cause     ExtractionErrorCause
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extractor error: %s", e.Cause)
}

func (e *ExtractionError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *ExtractionError) IsRetryable() bool {
	return e.Retryable
}

func (e *ExtractionError) Kind() failure.Kind {
	return failure.KindParseFailed
}

// Is allows errors.Is to match ExtractionError types
func (e *ExtractionError) Is(target error) bool {
	_, ok := target.(*ExtractionError)
	return ok
}
