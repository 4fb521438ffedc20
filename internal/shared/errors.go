package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates the actor lacks the capability for the attempted action.
	ErrUnauthorized = errors.New("actor lacks required capability")
	// ErrConcurrencyConflict indicates the document status changed between read and write.
	ErrConcurrencyConflict = errors.New("document changed concurrently, re-fetch and retry")
)

// ValidationError reports invalid input rejected before any persistence.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// PreconditionError reports an unmet external precondition for a transition,
// e.g. missing delivery note or insufficient material stock.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

// Preconditionf builds a PreconditionError from a format string.
func Preconditionf(format string, args ...any) error {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...)}
}

// TransitionError reports a status edge that does not exist from the current state.
type TransitionError struct {
	Document string
	From     string
	To       string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: illegal transition %s -> %s", e.Document, e.From, e.To)
}

// IsIllegalTransition reports whether err is a TransitionError.
func IsIllegalTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
