package jobmanager

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates an entity is absent from every tracked collection.
var ErrNotFound = errors.New("job not found")

// EntityNotLaunchedError indicates status was requested for an entity that
// was never registered with the manager.
type EntityNotLaunchedError struct {
	Name string
}

func (e *EntityNotLaunchedError) Error() string {
	return fmt.Sprintf("entity %q has not been launched by this manager", e.Name)
}

// NotCompletedError indicates a restart was requested for an entity that is
// not in the completed set.
type NotCompletedError struct {
	Name string
}

func (e *NotCompletedError) Error() string {
	return fmt.Sprintf("entity %q has no completed job to restart", e.Name)
}

// IsNotFound reports whether err means the entity is untracked.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
