package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigErrorUnwrap(t *testing.T) {
	err := Config("slot_duration", "must be positive, got %q", "-01:00")
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected errors.Is(err, ErrConfig)")
	}
	wrapped := fmt.Errorf("build timeline: %w", err)
	var ce *ConfigError
	if !errors.As(wrapped, &ce) {
		t.Fatalf("expected errors.As to find *ConfigError")
	}
	if ce.Field != "slot_duration" {
		t.Errorf("field = %q", ce.Field)
	}
	if got := err.Error(); got != `config: slot_duration: must be positive, got "-01:00"` {
		t.Errorf("message = %q", got)
	}
}

func TestConfigErrorWithoutField(t *testing.T) {
	err := &ConfigError{Reason: "empty"}
	if err.Error() != "config: empty" {
		t.Errorf("message = %q", err.Error())
	}
}
