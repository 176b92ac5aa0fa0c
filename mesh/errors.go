package mesh

import (
	"errors"
	"fmt"

	"github.com/hupe1980/meshkit/attribute"
)

var (
	// ErrStaleHandle is returned when a handle's epoch no longer matches its cell.
	ErrStaleHandle = errors.New("mesh: stale handle")

	// ErrNotApplicable is returned when a topological precondition of an edit
	// fails, for example the link condition of a collapse.
	ErrNotApplicable = errors.New("mesh: operation not applicable")

	// ErrUnsupported is returned for edits this dimensionality does not define.
	ErrUnsupported = errors.New("mesh: operation unsupported")

	// ErrActiveScopes is returned by Consolidate while any scope is open.
	ErrActiveScopes = attribute.ErrActiveScopes

	// ErrInvalidInput is returned by constructors for malformed connectivity.
	ErrInvalidInput = errors.New("mesh: invalid input")
)

// InvariantError reports a broken mesh invariant. It is raised with panic and
// recovered at the worker boundary, where it aborts the current run.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("mesh: invariant violated in %s: %s", e.Op, e.Msg)
}

func invariantf(op, format string, args ...any) {
	panic(&InvariantError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// Recover converts a recovered invariant violation into an error: an
// *InvariantError, an out-of-range access or a scope underflow. Any other panic
// value is re-raised.
//
//	defer func() { err = mesh.Recover(recover(), err) }()
func Recover(r any, err error) error {
	if r == nil {
		return err
	}
	if ie, ok := r.(*InvariantError); ok {
		return ie
	}
	if e, ok := r.(error); ok && (errors.Is(e, attribute.ErrOutOfRange) || errors.Is(e, attribute.ErrScopeUnderflow)) {
		return &InvariantError{Op: "attribute", Msg: e.Error()}
	}
	panic(r)
}
