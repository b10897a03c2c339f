package config

import "errors"

// ErrInvalidConfig wraps every configuration validation failure so that
// callers can test with errors.Is.
var ErrInvalidConfig = errors.New("invalid config")
