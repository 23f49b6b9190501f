package morphology

import (
	"errors"
	"fmt"
)

// ErrInvalidMorphology is the load-time rejection sentinel. It is the
// only failure that removes an entity; everything downstream degrades
// instead of failing.
var ErrInvalidMorphology = errors.New("invalid morphology")

// Error carries the joint and reason behind a rejected document.
type Error struct {
	JointID string
	Reason  string
}

func (e *Error) Error() string {
	if e.JointID == "" {
		return fmt.Sprintf("invalid morphology: %s", e.Reason)
	}
	return fmt.Sprintf("invalid morphology: joint %s: %s", e.JointID, e.Reason)
}

func (e *Error) Unwrap() error {
	return ErrInvalidMorphology
}

func invalidf(jointID, format string, args ...any) error {
	return &Error{JointID: jointID, Reason: fmt.Sprintf(format, args...)}
}
