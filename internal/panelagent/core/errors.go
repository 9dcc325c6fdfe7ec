package core

import (
	"errors"
	"fmt"
)

// ErrTransportAbsent is returned when an operation needs the named-value
// channel but no session is started, or the session was already stopped.
var ErrTransportAbsent = errors.New("named-value channel not available: session is not started")

// ConfigError reports a profile or identity that a session cannot run with.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s %q: %s", e.Field, e.Value, e.Reason)
}
