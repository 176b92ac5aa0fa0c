package attribute

import (
	"errors"
	"fmt"

	"github.com/hupe1980/meshkit/model"
)

var (
	// ErrOutOfRange is returned when an element id is beyond the reserved size.
	ErrOutOfRange = errors.New("attribute: element id out of range")

	// ErrDimensionMismatch is returned when a value does not match the column width.
	ErrDimensionMismatch = errors.New("attribute: dimension mismatch")

	// ErrDuplicateColumn is returned when a column name is registered twice for one primitive type.
	ErrDuplicateColumn = errors.New("attribute: duplicate column")

	// ErrUnknownColumn is returned by Lookup for missing columns.
	ErrUnknownColumn = errors.New("attribute: unknown column")

	// ErrNoActiveScope is returned when writing without a pushed scope.
	ErrNoActiveScope = errors.New("attribute: no active scope")

	// ErrActiveScopes is returned when a base rewrite is attempted while scopes are open.
	ErrActiveScopes = errors.New("attribute: scopes are still open")

	// ErrScopeUnderflow is the panic value of Pop on an empty stack.
	ErrScopeUnderflow = errors.New("attribute: pop on empty scope stack")
)

// OutOfRangeError carries the details of an out-of-range access.
//
// errors.Is(err, ErrOutOfRange) reports true for it.
type OutOfRangeError struct {
	Column string
	ID     model.ElementID
	Size   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("attribute: id %d out of range for column %q (reserved %d)", e.ID, e.Column, e.Size)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }
