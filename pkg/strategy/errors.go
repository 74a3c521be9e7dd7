package strategy

import (
	"errors"
	"fmt"
)

// ConfigurationError indicates programmer-facing misuse of the strategy
// engine: an unknown strategy name, a duplicate registration, or value
// lists that do not satisfy a strategy's shape requirements.
type ConfigurationError struct {
	// Op is the operation that failed (e.g. "resolve strategy").
	Op string

	// Msg describes what was wrong with the configuration.
	Msg string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// UserStrategyError wraps a failure inside a user-supplied strategy
// function: a returned error, a panic, or a malformed result. The Strategy
// field identifies the failing function.
type UserStrategyError struct {
	Strategy string
	Err      error
}

func (e *UserStrategyError) Error() string {
	return fmt.Sprintf("user strategy %q failed: %v", e.Strategy, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *UserStrategyError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is a strategy configuration error.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsUserStrategyError reports whether err originated in a user-supplied
// strategy function.
func IsUserStrategyError(err error) bool {
	var ue *UserStrategyError
	return errors.As(err, &ue)
}
