package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when a stream transition is not allowed from its current status.
	ErrInvalidState = errors.New("invalid stream state")
	// ErrPresenceIdentifier is returned when a presence is built without an identifier.
	ErrPresenceIdentifier = errors.New("presence: identifier is required")
	// ErrPresenceEmpty is returned when a presence has neither a status nor a message.
	ErrPresenceEmpty = errors.New("presence: at least a status or a message must be present")
)

// StateError reports a stream transition attempted from the wrong status.
type StateError struct {
	Op   string
	From StreamStatus
	Want StreamStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: stream is %s, want %s", e.Op, e.From, e.Want)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// ValidationError wraps a constructor failure with the type being built.
type ValidationError struct {
	Type string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Type, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
