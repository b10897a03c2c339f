package tools

import (
	"fmt"

	"github.com/rohmanhakim/lore-crawler/pkg/failure"
)

// Args is the generic inbound parameter shape. Everything arriving over
// the tool boundary is a loose map; it is validated into typed values
// here and nowhere else.
type Args map[string]any

func (a Args) str(key, fallback string) string {
	if v, ok := a[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

func (a Args) integer(key string, fallback int) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func (a Args) float(key string, fallback float64) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}

func (a Args) boolean(key string, fallback bool) bool {
	if v, ok := a[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

// ToolError is a synchronous input failure: nothing was persisted.
type ToolError struct {
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error: %s", e.Message)
}

func (e *ToolError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *ToolError) Kind() failure.Kind {
	return failure.KindBadInput
}

func badInput(format string, args ...any) *ToolError {
	return &ToolError{Message: fmt.Sprintf(format, args...)}
}
