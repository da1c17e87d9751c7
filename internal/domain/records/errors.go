package records

import "errors"

var (
	// ErrNotFound means the target id does not resolve to a row.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a business precondition failed, e.g. no refills left.
	ErrConflict = errors.New("conflict")
)
