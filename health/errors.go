package health

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateName indicates a check with the same name is already registered.
	ErrDuplicateName = errors.New("health: check name already registered")

	// ErrCheckNotFound indicates a check was not found in the registry.
	ErrCheckNotFound = errors.New("health: check not found")

	// ErrCheckTimeout indicates a check execution exceeded its timeout.
	ErrCheckTimeout = errors.New("health: check timed out")

	// ErrCheckPanic indicates a check panicked during execution.
	ErrCheckPanic = errors.New("health: check panicked")
)

// ConfigError reports an invalid policy value detected at registration or
// validation time. It is never produced at runtime.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("health: invalid config: %s: %s", e.Field, e.Reason)
}
