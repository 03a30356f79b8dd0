package marking

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSelection matches a choice index outside the current criterion.
	ErrInvalidSelection = errors.New("marking: invalid selection")
	// ErrAborted is the outcome of a session the marker cancelled. It is never
	// accompanied by a score.
	ErrAborted = errors.New("marking: aborted by user")
	// ErrNotFinished is returned when a result is requested mid-session.
	ErrNotFinished = errors.New("marking: session not finished")
)

// SelectionError describes a rejected choice index.
type SelectionError struct {
	Criterion string
	// Index is the 0-based index the marker asked for.
	Index   int
	Choices int
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("marking: %q has no choice %d (choose 1-%d)", e.Criterion, e.Index+1, e.Choices)
}

// Is reports ErrInvalidSelection as a match.
func (e *SelectionError) Is(target error) bool {
	return target == ErrInvalidSelection
}

// StateError reports an operation attempted in the wrong session state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("marking: cannot %s while %s", e.Op, e.State)
}
