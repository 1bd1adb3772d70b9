package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// PreconditionViolation reports a pipeline stage invoked out of order.
// It indicates a caller bug, not a transient condition.
type PreconditionViolation struct {
	Stage  string
	Owner  Owner
	Reason string
}

func (e *PreconditionViolation) Error() string {
	return fmt.Sprintf("precondition violated in %s for %s: %s", e.Stage, e.Owner, e.Reason)
}

// IsPreconditionViolation reports whether err wraps a PreconditionViolation.
func IsPreconditionViolation(err error) bool {
	var pv *PreconditionViolation
	return errors.As(err, &pv)
}
