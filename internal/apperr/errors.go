// Package apperr holds the error values shared across the timeline packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks errors caused by a configuration that cannot be
	// rendered. They are fatal to the affected view and recoverable by
	// reconfiguring.
	ErrConfig   = errors.New("config error")
	ErrNotFound = errors.New("not found")
)

// ConfigError describes which option made a view unrenderable.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// Config is shorthand for building a *ConfigError with a formatted reason.
func Config(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
