package coordinator

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownComponent means a load request named a component that is
	// neither excluded, registered nor already active.
	ErrUnknownComponent = errors.New("unknown component")
	// ErrReentrant is returned when an init routine calls back into Activate.
	ErrReentrant = errors.New("reentrant activation")
	// ErrInitPanic wraps a panic recovered from an init routine.
	ErrInitPanic = errors.New("init routine panicked")
)

// UnknownComponentError carries the name that could not be resolved.
type UnknownComponentError struct {
	Name string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("failed to find a built-in component with the name %q", e.Name)
}

func (e *UnknownComponentError) Unwrap() error {
	return ErrUnknownComponent
}
