package search

import (
	"fmt"

	"github.com/rohmanhakim/lore-crawler/pkg/failure"
)

type SearchErrorCause string

const (
	ErrCauseBadQuery SearchErrorCause = "bad query"
)

type SearchError struct {
	Message string
	Cause   SearchErrorCause
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search error: %s, %s", e.Cause, e.Message)
}

func (e *SearchError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *SearchError) Kind() failure.Kind {
	return failure.KindBadInput
}

// Is allows errors.Is to match SearchError types
func (e *SearchError) Is(target error) bool {
	_, ok := target.(*SearchError)
	return ok
}
